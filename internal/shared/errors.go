package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Adapter and platform errors
	ErrAdapter            = fmt.Errorf("platform adapter request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrResolution         = fmt.Errorf("URL could not be resolved")

	// Job state errors
	ErrJobNotFound   = fmt.Errorf("sync job not found")
	ErrNotResumable  = fmt.Errorf("operation not valid in current status")
	ErrAlreadyPushed = fmt.Errorf("job already pushed")

	// Input validation errors
	ErrValidation      = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
