package placeholder

import (
	"strconv"
	"strings"
)

// Kind discriminates the directive variants of a Pattern.
type Kind int

const (
	// KindEmpty is the empty directive; it substitutes to nothing.
	KindEmpty Kind = iota
	// KindLogin renders the login/register or logout/account links.
	KindLogin
	// KindEditor renders the new-article link for employees.
	KindEditor
	// KindAdmin renders the admin-panel link for admins.
	KindAdmin
	// KindDrafts renders a <select> of the principal's drafts.
	KindDrafts
	// KindAdminPanel renders the full user table for admins.
	KindAdminPanel
	// KindMe projects a column of the principal's user row (Text).
	KindMe
	// KindPath inlines a file from the content root (Text).
	KindPath
	// KindPositional inlines the file named by a positional argument (Index).
	KindPositional
	// KindL10n substitutes a localization catalog entry (Text).
	KindL10n
	// KindArticlePositional renders the article whose path is a positional argument (Index).
	KindArticlePositional
	// KindPreviewLatest renders a preview card by age offset (Index).
	KindPreviewLatest
	// KindArticleLatest renders a full article card by age offset (Index).
	KindArticleLatest
	// KindPreviewTitle renders a preview card by exact title (Text).
	KindPreviewTitle
	// KindArticleTitle renders a full article card by exact title (Text).
	KindArticleTitle
	// KindMaybe suppresses any failure of its inner directive (Sub).
	KindMaybe
)

// Pattern is a parsed directive. Exactly one payload field is meaningful
// for a given Kind: Text for name/path/key/title variants, Index for the
// numeric variants, Sub for maybe(). Sub is the only recursive arm.
type Pattern struct {
	Kind  Kind
	Text  string
	Index int
	Sub   *Pattern
}

// Parse interprets the raw text found strictly between "{{{" and "}}}".
// Matching is ordered and prefix-sensitive; the first matching rule wins.
// Content is not trimmed: " login" is not the login directive.
func Parse(text string) (Pattern, error) {
	switch {
	case text == "":
		return Pattern{Kind: KindEmpty}, nil
	case text == "login":
		return Pattern{Kind: KindLogin}, nil
	case text == "editor":
		return Pattern{Kind: KindEditor}, nil
	case text == "admin":
		return Pattern{Kind: KindAdmin}, nil
	case text == "drafts":
		return Pattern{Kind: KindDrafts}, nil
	case text == "admin-panel":
		return Pattern{Kind: KindAdminPanel}, nil
	case strings.HasPrefix(text, "me."):
		return Pattern{Kind: KindMe, Text: text[len("me."):]}, nil
	case strings.HasPrefix(text, "/"):
		return Pattern{Kind: KindPath, Text: text[1:]}, nil
	case strings.HasPrefix(text, "%"):
		return parseIndexed(KindPositional, text, text[1:])
	case strings.HasPrefix(text, "l10n("):
		inner, ok := parens(text, "l10n(")
		if !ok {
			return Pattern{}, &InvalidPatternError{Text: text}
		}
		return Pattern{Kind: KindL10n, Text: inner}, nil
	case strings.HasPrefix(text, "article%"):
		return parseIndexed(KindArticlePositional, text, text[len("article%"):])
	case strings.HasPrefix(text, "preview~"):
		return parseIndexed(KindPreviewLatest, text, text[len("preview~"):])
	case strings.HasPrefix(text, "article~"):
		return parseIndexed(KindArticleLatest, text, text[len("article~"):])
	case strings.HasPrefix(text, "preview "):
		return Pattern{Kind: KindPreviewTitle, Text: text[len("preview "):]}, nil
	case strings.HasPrefix(text, "article "):
		return Pattern{Kind: KindArticleTitle, Text: text[len("article "):]}, nil
	case strings.HasPrefix(text, "maybe("):
		inner, ok := parens(text, "maybe(")
		if !ok {
			return Pattern{}, &InvalidPatternError{Text: text}
		}
		sub, err := Parse(inner)
		if err != nil {
			return Pattern{}, err
		}
		return Pattern{Kind: KindMaybe, Sub: &sub}, nil
	default:
		return Pattern{}, &InvalidPatternError{Text: text}
	}
}

// parens extracts the argument of a prefix(...) form. The closing paren
// must be the final character of the text.
func parens(text, prefix string) (string, bool) {
	if !strings.HasSuffix(text, ")") {
		return "", false
	}
	return text[len(prefix) : len(text)-1], true
}

// parseIndexed parses the decimal suffix of the numeric directive forms.
// The suffix must be a plain non-negative decimal.
func parseIndexed(kind Kind, full, suffix string) (Pattern, error) {
	n, err := strconv.ParseUint(suffix, 10, strconv.IntSize-1)
	if err != nil {
		return Pattern{}, &InvalidPatternError{Text: full}
	}
	return Pattern{Kind: kind, Index: int(n)}, nil
}
