package placeholder

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorization is returned when a directive requires an
	// authenticated principal or a role membership the session does not
	// have. Authorization-gated directives fail closed: they never degrade
	// to empty output.
	ErrAuthorization = errors.New("authorization failed")

	// ErrNestedMaybe is returned when maybe() is resolved inside another
	// maybe(). One level of fault suppression is all the language offers;
	// deeper nesting is rejected rather than silently flattened.
	ErrNestedMaybe = errors.New("maybe() cannot be nested inside maybe()")
)

// InvalidPatternError reports directive text that matches no grammar rule.
// The scanner downgrades it to an empty substitution; it only surfaces to
// callers using Parse directly.
type InvalidPatternError struct {
	Text string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern: %q", e.Text)
}

// NotFoundError reports a directive whose target does not exist: a
// positional argument that was never supplied, an article row with no
// match, or a file absent from the content root.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %q", e.Resource)
}
