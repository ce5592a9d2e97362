package linker

import (
	"fmt"

	"github.com/starford/paperlink/internal/apperr"
)

// Kind classifies a failed invocation.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindRemoteLookup Kind = "remote_lookup"
	KindStore        Kind = "store"
	KindEditor       Kind = "editor"
)

// User-facing notices.
const (
	NoticeInvalidID     = "Please provide a valid document ID."
	NoticeInvalidNumber = "Please enter a valid number."
	NoticeAddFailed     = "Failed to add document. Check the console for more details."
	NoticeRenderFailed  = "Failed to render Paperless-ngx document. Check the console for more details."
	NoticeInsertFailed  = "Failed to insert Paperless-ngx document. Check the console for more details."
	NoticeSourceMissing = "Failed to find source string in editor."
)

// Error is the failure result of a linker operation. Notice is the generic
// text shown to the user; Detail and Err are for operators.
type Error struct {
	Kind   Kind
	Notice string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return apperr.ErrValidation
	case KindRemoteLookup:
		return apperr.ErrRemoteLookup
	case KindStore:
		return apperr.ErrStore
	default:
		return apperr.ErrEditor
	}
}
