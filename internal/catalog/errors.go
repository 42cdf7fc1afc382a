package catalog

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
)

// Integrity problem codes (E200-E209).
const (
	ErrCodeEmptyFlag          = "E201" // template has no flag
	ErrCodeDuplicateFlag      = "E202" // two templates for one flag
	ErrCodeInvalidShortCode   = "E203" // short code unusable in a task id
	ErrCodeDuplicateShortCode = "E204" // two templates share a short code
	ErrCodeEmptyCatalog       = "E205" // source defines no templates
)

// ErrEmpty is returned by providers whose source has no templates for the
// requested partition. Fallback treats it as a cue to use its default.
var ErrEmpty = errors.New("catalog is empty")

// Problem is one integrity violation found while building a catalog.
type Problem struct {
	Code    string `json:"code"`
	Flag    string `json:"flag"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("[%s] %s: %s", p.Code, p.Flag, p.Message)
}

// IntegrityError reports a catalog that must not be used. It is fatal to a
// reconciliation pass.
type IntegrityError struct {
	Partition string
	Problems  []Problem
}

func (e *IntegrityError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("catalog integrity (partition=%s): %s", e.Partition, strings.Join(parts, "; "))
}

// HasCode reports whether any problem carries code.
func (e *IntegrityError) HasCode(code string) bool {
	for _, p := range e.Problems {
		if p.Code == code {
			return true
		}
	}
	return false
}

// IsIntegrityError reports whether err wraps an *IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// SourceError is a parse or shape error in a catalog source file.
type SourceError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SourceError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
