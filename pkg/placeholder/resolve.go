package placeholder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/CTAG07/Drosera/pkg/blogstore"
	"github.com/CTAG07/Drosera/pkg/i18n"
	"github.com/CTAG07/Drosera/pkg/pubpath"
)

// pwhashRefusal is what me.pwhash resolves to for every principal. The
// stored credential hash is never exposed through the directive language.
const pwhashRefusal = "No passwords for you!"

// Session is the per-render resolution context: the optional authenticated
// principal and the caller-supplied positional arguments. An empty
// Identity means the render is anonymous. Args are 1-indexed from the
// directive language's point of view.
type Session struct {
	Identity string
	Args     []string
}

// Resolver evaluates parsed directives against the content store, the
// localization catalog and the public content root. A Resolver is cheap
// and safe to share across renders; all per-render state lives in the
// Session.
type Resolver struct {
	store   *blogstore.Store
	catalog *i18n.Catalog
	root    string
	logger  *slog.Logger
}

// NewResolver returns a Resolver reading content files below root.
func NewResolver(store *blogstore.Store, catalog *i18n.Catalog, root string, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:   store,
		catalog: catalog,
		root:    root,
		logger:  logger,
	}
}

// Resolve evaluates a directive to its substitution text. It is the
// tolerant entry point and the only place fault suppression happens: a
// maybe() directive has its inner directive evaluated via the base
// resolver with any failure absorbed into an empty string. Every other
// directive behaves exactly as under the base resolver, including
// propagating its errors.
func (r *Resolver) Resolve(ctx context.Context, sess *Session, p Pattern) (string, error) {
	if p.Kind == KindMaybe {
		text, err := r.resolveBase(ctx, sess, *p.Sub)
		if err != nil {
			r.logger.DebugContext(ctx, "maybe() suppressed a resolution failure", "error", err)
			return "", nil
		}
		return text, nil
	}
	return r.resolveBase(ctx, sess, p)
}

// resolveBase evaluates any directive except that it rejects maybe()
// outright: fault suppression is not available below the top level, so a
// maybe() reaching this point is a nesting violation.
func (r *Resolver) resolveBase(ctx context.Context, sess *Session, p Pattern) (string, error) {
	switch p.Kind {
	case KindEmpty:
		return "", nil
	case KindLogin:
		return r.resolveLogin(sess), nil
	case KindEditor:
		return r.resolveEditor(ctx, sess)
	case KindAdmin:
		return r.resolveAdmin(ctx, sess)
	case KindDrafts:
		return r.resolveDrafts(ctx, sess)
	case KindAdminPanel:
		return r.resolveAdminPanel(ctx, sess)
	case KindMe:
		return r.resolveMe(ctx, sess, p.Text)
	case KindPath:
		return r.readPublic(p.Text)
	case KindPositional:
		path, err := r.positionalArg(sess, p.Index)
		if err != nil {
			return "", err
		}
		return r.readPublic(path)
	case KindL10n:
		return r.catalog.Lookup(p.Text)
	case KindArticlePositional:
		return r.resolveArticlePositional(ctx, sess, p.Index)
	case KindPreviewLatest:
		return r.resolvePreviewLatest(ctx, p.Index)
	case KindArticleLatest:
		return r.resolveArticleLatest(ctx, p.Index)
	case KindPreviewTitle:
		return r.resolvePreviewTitle(ctx, p.Text)
	case KindArticleTitle:
		return r.resolveArticleTitle(ctx, p.Text)
	case KindMaybe:
		return "", ErrNestedMaybe
	default:
		return "", &InvalidPatternError{Text: fmt.Sprintf("kind %d", p.Kind)}
	}
}

func (r *Resolver) resolveLogin(sess *Session) string {
	if sess.Identity == "" {
		return `<span class="float-right"><a href="/login.html">{{{l10n(login)}}}</a></span> ` +
			`<span class="float-right"><a href="/create.html">{{{l10n(register)}}}</a></span>`
	}
	return `<span class="float-right"><a href="/auth/logout.html">{{{l10n(logout)}}}</a></span> ` +
		`<span class="float-right"><a href="/account/me.html">{{{l10n(logged_in_as)}}}: ` +
		escapeText(sess.Identity) + `</a></span>`
}

func (r *Resolver) resolveEditor(ctx context.Context, sess *Session) (string, error) {
	// Only employees are allowed to write new articles.
	if sess.Identity == "" {
		return "", ErrAuthorization
	}
	ok, err := r.store.IsEmployee(ctx, sess.Identity)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAuthorization
	}
	return `<span class="float-right"><a href="/account/editor.html">{{{l10n(new_article)}}}</a></span>`, nil
}

func (r *Resolver) resolveAdmin(ctx context.Context, sess *Session) (string, error) {
	if sess.Identity == "" {
		return "", ErrAuthorization
	}
	ok, err := r.store.IsAdmin(ctx, sess.Identity)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAuthorization
	}
	return `<span class="float-right"><a href="/account/admin.html">{{{l10n(admin_panel)}}}</a></span>`, nil
}

func (r *Resolver) resolveDrafts(ctx context.Context, sess *Session) (string, error) {
	if sess.Identity == "" {
		return "", ErrAuthorization
	}
	drafts, err := r.store.DraftsFor(ctx, sess.Identity)
	if err != nil {
		return "", err
	}
	if len(drafts) == 0 {
		return "", nil
	}

	// The select stays between 2 and 5 visible options regardless of how
	// many drafts the user has piled up.
	size := min(len(drafts), 5)
	size = max(size, 2)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<select oninput=\"load_draft()\" id=\"draft-select\" name=\"draft-select\" size=\"%d\">\n", size)
	for _, draft := range drafts {
		title := "&lt;untitled&gt;"
		if draft.Title.Valid && draft.Title.String != "" {
			title = escapeText(draft.Title.String)
		}
		fmt.Fprintf(&sb, "<option value=\"%d\">%s</option>\n", draft.ID, title)
	}
	sb.WriteString("</select>\n")
	return sb.String(), nil
}

func (r *Resolver) resolveAdminPanel(ctx context.Context, sess *Session) (string, error) {
	if sess.Identity == "" {
		return "", ErrAuthorization
	}
	ok, err := r.store.IsAdmin(ctx, sess.Identity)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAuthorization
	}

	users, err := r.store.Users(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("<table>\n<tr>\n<th>UID</th>\n")
	for _, key := range []string{
		"account_username", "account_firstname", "account_lastname",
		"account_email", "account_isemployee", "account_isadmin",
	} {
		fmt.Fprintf(&sb, "<th>{{{l10n(%s)}}}</th>\n", key)
	}
	sb.WriteString("</tr>\n")

	for _, user := range users {
		isEmployee, err := r.store.IsEmployeeID(ctx, user.ID)
		if err != nil {
			return "", err
		}
		isAdmin, err := r.store.IsAdminID(ctx, user.ID)
		if err != nil {
			return "", err
		}
		employeeChecked, adminChecked := "", ""
		if isEmployee {
			employeeChecked = `checked="checked"`
		}
		if isAdmin {
			adminChecked = `checked="checked"`
		}
		email := escapeText(user.Email)
		sb.WriteString("<tr>\n")
		fmt.Fprintf(&sb, "<td>%d</td>\n", user.ID)
		fmt.Fprintf(&sb, "<td>%s</td>\n", escapeText(user.Username))
		fmt.Fprintf(&sb, "<td>%s</td>\n", escapeText(user.Firstname.String))
		fmt.Fprintf(&sb, "<td>%s</td>\n", escapeText(user.Lastname.String))
		fmt.Fprintf(&sb, "<td><a href=\"mailto:%s\">%s</a></td>\n", email, email)
		fmt.Fprintf(&sb, "<td><form><input type=\"checkbox\" %s oninput=\"make_employee(this, %d)\"/></form></td>\n", employeeChecked, user.ID)
		fmt.Fprintf(&sb, "<td><form><input type=\"checkbox\" %s oninput=\"make_admin(this, %d)\"/></form></td>\n", adminChecked, user.ID)
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>\n")
	return sb.String(), nil
}

func (r *Resolver) resolveMe(ctx context.Context, sess *Session, field string) (string, error) {
	if field == "pwhash" {
		return pwhashRefusal, nil
	}
	if sess.Identity == "" {
		return "", nil
	}
	row, err := r.store.UserRow(ctx, sess.Identity)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	return row.Get(field), nil
}

// positionalArg fetches the 1-indexed positional argument. Index 0 and
// out-of-range indexes both fail as missing resources.
func (r *Resolver) positionalArg(sess *Session, index int) (string, error) {
	if index < 1 || index > len(sess.Args) {
		return "", &NotFoundError{Resource: fmt.Sprintf("%%%d", index)}
	}
	return sess.Args[index-1], nil
}

// readPublic validates rel against the content root, reads the file and
// converts it to HTML when the extension is "md". Validation and I/O
// errors propagate.
func (r *Resolver) readPublic(rel string) (string, error) {
	p, err := pubpath.Resolve(r.root, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p.String())
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", p.Rel(), err)
	}
	if p.Ext() == "md" {
		return renderMarkdown(string(data))
	}
	return string(data), nil
}

// articleBody reads and converts an article's on-disk body. Unlike
// readPublic, a missing file is a missing resource rather than an I/O
// failure: the store row pointed at content that is not there.
func (r *Resolver) articleBody(rel string) (string, error) {
	p, err := pubpath.Resolve(r.root, rel)
	if err != nil {
		return "", err
	}
	if !p.Exists() {
		return "", &NotFoundError{Resource: p.Rel()}
	}
	data, err := os.ReadFile(p.String())
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", p.Rel(), err)
	}
	if p.Ext() == "md" {
		return renderMarkdown(string(data))
	}
	return string(data), nil
}

// articleCard renders the full-article markup shared by the positional,
// age-offset and title lookups.
func (r *Resolver) articleCard(ctx context.Context, article blogstore.Article, body string) (string, error) {
	byAuthor, err := r.byAuthor(ctx, article.Author)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<article><h1>%s</h1>%s%s<br/>%s</article>",
		escapeText(article.Title), article.Date, byAuthor, body), nil
}

// previewCard renders the title-linking preview markup.
func (r *Resolver) previewCard(ctx context.Context, article blogstore.Article) (string, error) {
	byAuthor, err := r.byAuthor(ctx, article.Author)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<article><h2><a href=\"%s\">%s</a></h2>%s%s</article>",
		article.Path, escapeText(article.Title), article.Date, byAuthor), nil
}

func (r *Resolver) resolveArticlePositional(ctx context.Context, sess *Session, index int) (string, error) {
	path, err := r.positionalArg(sess, index)
	if err != nil {
		return "", err
	}
	article, err := r.store.ArticleByPath(ctx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &NotFoundError{Resource: path}
	}
	if err != nil {
		return "", err
	}
	body, err := r.articleBody(article.Path)
	if err != nil {
		return "", err
	}
	return r.articleCard(ctx, article, body)
}

// latestAt translates an age offset into a slice index: offset 0 is the
// most recently created row, offset len-1 the oldest. Returns false when
// the offset is past the oldest row.
func latestAt(articles []blogstore.Article, offset int) (blogstore.Article, bool) {
	i := len(articles) - 1 - offset
	if i < 0 || i >= len(articles) {
		return blogstore.Article{}, false
	}
	return articles[i], true
}

func (r *Resolver) resolvePreviewLatest(ctx context.Context, offset int) (string, error) {
	articles, err := r.store.ArticlesByAge(ctx)
	if err != nil {
		return "", err
	}
	article, ok := latestAt(articles, offset)
	if !ok {
		return "", &NotFoundError{Resource: fmt.Sprintf("preview~%d", offset)}
	}
	return r.previewCard(ctx, article)
}

func (r *Resolver) resolveArticleLatest(ctx context.Context, offset int) (string, error) {
	articles, err := r.store.ArticlesByAge(ctx)
	if err != nil {
		return "", err
	}
	// An offset with no row is silently empty here, unlike the preview
	// variant. A row whose file went missing is still a hard miss.
	article, ok := latestAt(articles, offset)
	if !ok {
		return "", nil
	}
	body, err := r.articleBody(article.Path)
	if err != nil {
		return "", err
	}
	return r.articleCard(ctx, article, body)
}

func (r *Resolver) resolvePreviewTitle(ctx context.Context, title string) (string, error) {
	article, err := r.store.ArticleByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	return r.previewCard(ctx, article)
}

func (r *Resolver) resolveArticleTitle(ctx context.Context, title string) (string, error) {
	article, err := r.store.ArticleByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	body, err := r.articleBody(article.Path)
	if err != nil {
		return "", err
	}
	return r.articleCard(ctx, article, body)
}
