package pipeline

import "time"

// Defaults for recognition and page processing.
// Overridden by internal/config and CLI flags.
const (
	// DefaultModelName is the default Gemini model used for page recognition.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultPageConcurrency bounds concurrent page processing in Run.
	DefaultPageConcurrency = 4

	// DefaultExtractInterval is the minimum gap between recognition calls.
	DefaultExtractInterval = 15 * time.Second

	// DefaultImageMIMEType is used when a page image's type cannot be inferred.
	DefaultImageMIMEType = "image/png"
)
