package interaction

import "github.com/example/media-platform/internal/platform/validation"

// Validate checks an event at an ingestion boundary (HTTP or queue). The
// preference model itself never validates. Failures are *validation.Error.
func Validate(e Event) error {
	return validation.Struct(e)
}
