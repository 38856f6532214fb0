package placeholder

import (
	"context"
	"fmt"
	"strings"
)

const (
	openDelim  = "{{{"
	closeDelim = "}}}"

	// maxRecursiveSplices bounds the recursive strategy against resolved
	// output that keeps reintroducing its own trigger text. Well-behaved
	// templates come nowhere near it.
	maxRecursiveSplices = 10000
)

// spliceNext locates the first placeholder span at or after start, resolves
// it and splices the result into the buffer. It returns the index just past
// the spliced text, or done=true when the remaining buffer holds no
// completed span. Text inside an unterminated opener is left untouched;
// directive text that fails to parse substitutes as empty.
func (r *Resolver) spliceNext(ctx context.Context, sess *Session, input *string, start int) (next int, done bool, err error) {
	rel := strings.Index((*input)[start:], openDelim)
	if rel < 0 {
		return 0, true, nil
	}
	open := start + rel
	length := strings.Index((*input)[open+len(openDelim):], closeDelim)
	if length < 0 {
		return 0, true, nil
	}
	innerStart := open + len(openDelim)
	inner := (*input)[innerStart : innerStart+length]

	pattern, perr := Parse(inner)
	if perr != nil {
		// Malformed authoring degrades to nothing instead of killing the page.
		r.logger.DebugContext(ctx, "dropping malformed placeholder", "text", inner)
		pattern = Pattern{Kind: KindEmpty}
	}

	text, err := r.Resolve(ctx, sess, pattern)
	if err != nil {
		return 0, false, err
	}

	*input = (*input)[:open] + text + (*input)[innerStart+length+len(closeDelim):]
	return open + len(text), false, nil
}

// ReplaceAll substitutes every placeholder span in the buffer using the
// single-pass strategy: after each splice the cursor advances to the end
// of the inserted text, so resolved output is never rescanned. Termination
// is linear in the buffer length plus the placeholder count. The first
// unrecovered resolution error aborts the walk; the caller must not serve
// the buffer after an error.
func (r *Resolver) ReplaceAll(ctx context.Context, sess *Session, input *string) error {
	cursor := 0
	for {
		next, done, err := r.spliceNext(ctx, sess, input, cursor)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		cursor = next
	}
}

// ReplaceAllRecursive substitutes placeholders like ReplaceAll but restarts
// the search from the beginning of the buffer after every splice, so
// placeholders embedded in resolved output (localization markers inside
// generated widgets, for instance) are themselves expanded. Output that
// reproduces an unresolved placeholder verbatim would never converge, so
// the pass count is capped.
func (r *Resolver) ReplaceAllRecursive(ctx context.Context, sess *Session, input *string) error {
	for splices := 0; splices < maxRecursiveSplices; splices++ {
		_, done, err := r.spliceNext(ctx, sess, input, 0)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("substitution did not converge after %d splices", maxRecursiveSplices)
}
