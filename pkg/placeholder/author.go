package placeholder

import (
	"context"
	"fmt"
)

// authorName projects a user id into the display name used for article
// attribution. The username is always present; first and last name are
// optional and the format degrades through the combinations:
//
//	First "username" Last
//	First "username"
//	"username" Last
//	username
//
// The boolean result is false when no user row exists for the id.
func (r *Resolver) authorName(ctx context.Context, uid int64) (string, bool, error) {
	parts, err := r.store.UserNames(ctx, uid)
	if err != nil {
		return "", false, err
	}
	if parts == nil {
		return "", false, nil
	}

	username := escapeText(parts.Username)
	first := escapeText(parts.First.String)
	last := escapeText(parts.Last.String)
	switch {
	case parts.First.Valid && parts.Last.Valid:
		return fmt.Sprintf("%s %q %s", first, username, last), true, nil
	case parts.First.Valid:
		return fmt.Sprintf("%s %q", first, username), true, nil
	case parts.Last.Valid:
		return fmt.Sprintf("%q %s", username, last), true, nil
	default:
		return username, true, nil
	}
}

// byAuthor renders the optional " {{{l10n(by_author)}}} <name>" fragment
// appended to article cards. Unknown author ids produce no fragment.
func (r *Resolver) byAuthor(ctx context.Context, uid int64) (string, error) {
	name, ok, err := r.authorName(ctx, uid)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return " {{{l10n(by_author)}}} " + name, nil
}
