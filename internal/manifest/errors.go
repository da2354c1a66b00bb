package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoManifest is returned when the root manifest file does not exist.
var ErrNoManifest = errors.New("no manifest found")

// InvalidManifestError reports a manifest that could not be read, parsed or
// evaluated.
type InvalidManifestError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidManifestError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid manifest %s: %s", e.Path, e.Reason)
	}
	return "invalid manifest: " + e.Reason
}

func (e *InvalidManifestError) Unwrap() error { return e.Err }

// Invalid wraps err as an InvalidManifestError for path.
func Invalid(path string, err error) error {
	return &InvalidManifestError{Path: path, Reason: err.Error(), Err: err}
}

// ViolationError is one structural problem found by Check.
type ViolationError struct {
	Project string
	Reason  string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("project %s: %s", e.Project, e.Reason)
}

// MultipleError collects every violation found in one validation pass.
type MultipleError struct {
	Errors []error
}

func (e *MultipleError) Error() string {
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, err := range e.Errors {
		b.WriteString("\n - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *MultipleError) Unwrap() []error { return e.Errors }
