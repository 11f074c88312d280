// Package matcher scores destination-platform candidates against source
// tracks and classifies the result into confidence bands.
//
// Scoring is deterministic and side-effect free: normalized title similarity
// (45%), normalized artist similarity (35%) and duration closeness (20%),
// with an ISRC exact match short-circuiting to 1.0. When duration is unknown
// on either side its weight is redistributed to title and artist.
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/subnurb/mediaplace/internal/models"
)

// Config holds the classification policy. The band thresholds are policy
// constants reproduced verbatim for compatibility with existing jobs; they
// are configurable but not derived.
type Config struct {
	MatchedThreshold     float64 // score >= this → matched
	UncertainThreshold   float64 // score >= this → uncertain, else not_found
	DurationToleranceSec float64 // full duration score within this delta
}

// DefaultConfig returns the standard classification bands.
func DefaultConfig() Config {
	return Config{
		MatchedThreshold:     0.90,
		UncertainThreshold:   0.55,
		DurationToleranceSec: 5,
	}
}

// Track carries the metadata the scorer compares. DurationMS of 0 means
// unknown.
type Track struct {
	Title      string
	Artist     string
	DurationMS int
	ISRC       string
}

// Scored pairs a candidate index with its confidence score.
type Scored struct {
	Index int
	Score float64
}

const (
	titleWeight    = 0.45
	artistWeight   = 0.35
	durationWeight = 0.20

	// Weights when duration is unknown on either side.
	titleWeightNoDur  = 0.57
	artistWeightNoDur = 0.43

	// Fixed penalty when the candidate carries version markers the source
	// does not (remix, live, acoustic, ...). One wrong marker is enough.
	versionPenalty = 0.15

	// Below this artist similarity the compound-slug prefix check kicks in.
	artistSlugCutoff = 0.85
)

var (
	// Title noise: video-platform suffixes, bracketed qualifiers, featured
	// artist credits, trailing "- official ..." segments.
	noiseRE = regexp.MustCompile(`(?i)` +
		`\(official\s*(?:music\s*)?video\)|` +
		`\(official\s*audio\)|` +
		`\(official\s*lyric\s*video\)|` +
		`\(lyrics?\s*(?:video)?\)|` +
		`\(visualizer\)|` +
		`\(hd\)|` +
		`\(4k\)|` +
		`\(remaster(?:ed)?\s*\d*\)|` +
		`\(live(?:\s+at\s+[^)]*)?\)|` +
		`\(acoustic(?:\s+version)?\)|` +
		`\(radio\s*edit\)|` +
		`\(extended\s*(?:mix|version)?\)|` +
		`\[official\s*(?:music\s*)?video\]|` +
		`\[remaster(?:ed)?\s*\d*\]|` +
		`\(prod\.?\s+[^)]+\)|` +
		`\[prod\.?\s+[^\]]+\]|` +
		`ft\.?\s+[\w\s,&]+|` +
		`feat\.?\s+[\w\s,&]+|` +
		`\s*[-–|]\s*(?:official|lyrics?|audio|visualizer|hd|4k).*$`)

	punctRE = regexp.MustCompile(`[^\p{L}\p{N}_\s\-]`)

	// Channel naming noise ("DaftPunkVEVO", "Artist - Topic").
	channelRE = regexp.MustCompile(`(?i)\s*(vevo|official|music|records?|tv|channel|topic)\s*$`)

	// "artist-name" style permalink slugs.
	slugRE = regexp.MustCompile(`[-_]+`)

	splitArtistRE = regexp.MustCompile(`(?i)\s+(?:feat|ft|featuring|&|,|x)\s+`)

	// Words that pin a recording to a specific version.
	versionRE = regexp.MustCompile(`(?i)\b(remix|remixed|live|acoustic|cover|demo|instrumental|karaoke|` +
		`radio\s*edit|extended|reprise|mashup|flip|rework|bootleg|stripped|` +
		`orchestral|piano\s*version|a\s*cappella|unplugged)\b`)
)

// fold case-folds and NFKD-decomposes, keeping all scripts (no ASCII strip),
// and collapses whitespace. A fresh Caser per call: cases.Caser is not safe
// for concurrent use.
func fold(s string) string {
	return strings.Join(strings.Fields(norm.NFKD.String(cases.Fold().String(s))), " ")
}

// NormalizeTitle strips noise patterns and punctuation, then folds.
func NormalizeTitle(s string) string {
	s = noiseRE.ReplaceAllString(s, " ")
	s = punctRE.ReplaceAllString(s, " ")
	return fold(s)
}

// NormalizeArtist keeps only the primary artist (before feat./&/,) and folds.
func NormalizeArtist(s string) string {
	parts := splitArtistRE.Split(s, 2)
	return fold(parts[0])
}

// NormalizeChannel strips channel naming noise ("DaftPunkVEVO" → "daftpunk").
func NormalizeChannel(s string) string {
	return fold(channelRE.ReplaceAllString(s, ""))
}

// CleanTitle removes an "Artist - " prefix common in video uploads,
// e.g. "AURORA - Runaway" → "runaway".
func CleanTitle(title, artist string) string {
	clean := NormalizeTitle(title)
	if artist == "" {
		return clean
	}
	prefix := regexp.MustCompile(`(?i)^\[?` + regexp.QuoteMeta(NormalizeArtist(artist)) + `[\]:]?\s*[-–]\s*`)
	stripped := strings.TrimSpace(prefix.ReplaceAllString(clean, ""))
	if stripped != "" && !strings.EqualFold(stripped, clean) {
		return stripped
	}
	return clean
}

// BuildQueries returns deduplicated search query formulations from most to
// least specific. The raw title is always included last: label codes and
// symbols stripped by normalization still help platforms rank niche tracks.
func BuildQueries(title, artist string) []string {
	fullNorm := NormalizeTitle(title)

	var queries []string
	if artist != "" {
		clean := CleanTitle(title, artist)
		queries = append(queries, artist+" "+clean)
		if !strings.EqualFold(fullNorm, clean) {
			queries = append(queries, artist+" "+fullNorm)
		}
		queries = append(queries, clean)
	} else {
		queries = append(queries, fullNorm)
	}
	queries = append(queries, title)

	seen := make(map[string]bool)
	var result []string
	for _, q := range queries {
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, q)
	}
	return result
}

// similarity is a Levenshtein ratio in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	r, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(r)
}

// tokenSetRatio compares two strings as token sets, so that word
// re-ordering and subsets still match fully ("aurora" vs "aurora topic").
func tokenSetRatio(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(ta))
	for _, t := range ta {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tb))
	for _, t := range tb {
		setB[t] = true
	}

	var inter, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(inter, " ")
	s1 := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	s2 := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := similarity(s1, s2)
	if base != "" {
		if v := similarity(base, s1); v > best {
			best = v
		}
		if v := similarity(base, s2); v > best {
			best = v
		}
	}
	return best
}

// artistScore scores artist similarity, robust to channel naming
// conventions. Neutral 0.5 when either side is unknown.
func artistScore(sourceArtist, candArtist string) float64 {
	if sourceArtist == "" || candArtist == "" {
		return 0.5
	}

	src := NormalizeArtist(sourceArtist)
	raw := NormalizeChannel(candArtist)
	slug := NormalizeChannel(slugRE.ReplaceAllString(candArtist, " "))

	best := tokenSetRatio(src, raw)
	if v := tokenSetRatio(src, slug); v > best {
		best = v
	}

	// Compound slug check: "auroraaksnes" starting with "aurora" is the
	// same artist even though token matching fails. Score by coverage.
	if best < artistSlugCutoff {
		srcCompact := strings.ReplaceAll(src, " ", "")
		for _, cand := range []string{raw, slug} {
			candCompact := strings.ReplaceAll(cand, " ", "")
			if srcCompact == "" || candCompact == "" {
				continue
			}
			if strings.HasPrefix(candCompact, srcCompact) || strings.HasPrefix(srcCompact, candCompact) {
				overlap := len(srcCompact)
				if len(candCompact) < overlap {
					overlap = len(candCompact)
				}
				total := len(srcCompact)
				if len(candCompact) > total {
					total = len(candCompact)
				}
				if v := 0.50 + 0.40*float64(overlap)/float64(total); v > best {
					best = v
				}
			}
		}
	}

	return best
}

// durationScore returns 0–1 duration similarity, or -1 when either duration
// is unknown (the caller redistributes the weight).
func (c Config) durationScore(aMS, bMS int) float64 {
	if aMS <= 0 || bMS <= 0 {
		return -1
	}

	diff := float64(aMS-bMS) / 1000
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= c.DurationToleranceSec:
		return 1
	case diff <= 30:
		return 1 - (diff-c.DurationToleranceSec)/30
	default:
		return 0
	}
}

// hasExtraVersionMarkers reports whether the candidate title carries version
// markers absent from the source title, using the raw (non-normalized)
// titles.
func hasExtraVersionMarkers(sourceTitle, candTitle string) bool {
	src := make(map[string]bool)
	for _, m := range versionRE.FindAllStringSubmatch(sourceTitle, -1) {
		src[strings.ToLower(m[1])] = true
	}
	for _, m := range versionRE.FindAllStringSubmatch(candTitle, -1) {
		if !src[strings.ToLower(m[1])] {
			return true
		}
	}
	return false
}

// Score returns a 0–1 match confidence for a (source, candidate) pair.
// Deterministic: the same pair always yields the identical value.
func (c Config) Score(source, cand Track) float64 {
	if source.ISRC != "" && cand.ISRC != "" &&
		strings.EqualFold(strings.TrimSpace(source.ISRC), strings.TrimSpace(cand.ISRC)) {
		return 1
	}

	tScore := tokenSetRatio(NormalizeTitle(source.Title), NormalizeTitle(cand.Title))
	aScore := artistScore(source.Artist, cand.Artist)
	dScore := c.durationScore(source.DurationMS, cand.DurationMS)

	var base float64
	if dScore < 0 {
		base = tScore*titleWeightNoDur + aScore*artistWeightNoDur
	} else {
		base = tScore*titleWeight + aScore*artistWeight + dScore*durationWeight
	}

	if hasExtraVersionMarkers(source.Title, cand.Title) {
		base -= versionPenalty
	}

	if base < 0 {
		return 0
	}
	if base > 1 {
		return 1
	}
	return base
}

// Classify maps a confidence score onto a track status band.
func (c Config) Classify(score float64) models.TrackStatus {
	switch {
	case score >= c.MatchedThreshold:
		return models.TrackMatched
	case score >= c.UncertainThreshold:
		return models.TrackUncertain
	default:
		return models.TrackNotFound
	}
}

// Rank scores every candidate against the source and returns them in
// descending score order. Ties keep the candidates' original order, which
// preserves the platform's own ranking.
func (c Config) Rank(source Track, candidates []Track) []Scored {
	scored := make([]Scored, len(candidates))
	for i, cand := range candidates {
		scored[i] = Scored{Index: i, Score: c.Score(source, cand)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
