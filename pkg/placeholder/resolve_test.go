package placeholder

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/CTAG07/Drosera/pkg/pubpath"
)

func TestResolveLogin(t *testing.T) {
	env := setupTestResolver(t)

	got, err := env.resolveText(t, &Session{}, "login")
	if err != nil {
		t.Fatalf("login (anonymous) error = %v", err)
	}
	if !strings.Contains(got, `href="/login.html"`) || !strings.Contains(got, "{{{l10n(register)}}}") {
		t.Errorf("anonymous login markup = %q, want login/register links", got)
	}

	got, err = env.resolveText(t, &Session{Identity: "alice"}, "login")
	if err != nil {
		t.Fatalf("login (authed) error = %v", err)
	}
	if !strings.Contains(got, `href="/auth/logout.html"`) || !strings.Contains(got, "{{{l10n(logged_in_as)}}}: alice") {
		t.Errorf("authed login markup = %q, want logout/account links", got)
	}
}

func TestResolveAuthGatedDirectives(t *testing.T) {
	env := setupTestResolver(t)

	uid := env.addUser(t, "staff", "", "")
	if err := env.store.AddEmployee(env.ctx, uid); err != nil {
		t.Fatal(err)
	}
	admin := env.addUser(t, "boss", "", "")
	if err := env.store.AddAdmin(env.ctx, admin); err != nil {
		t.Fatal(err)
	}
	env.addUser(t, "pleb", "", "")

	// All four role-gated directives fail closed for anonymous sessions.
	for _, text := range []string{"editor", "admin", "drafts", "admin-panel"} {
		if _, err := env.resolveText(t, &Session{}, text); !errors.Is(err, ErrAuthorization) {
			t.Errorf("%s (anonymous) error = %v, want ErrAuthorization", text, err)
		}
	}

	// Membership-gated directives also fail for a principal without the role.
	for _, text := range []string{"editor", "admin", "admin-panel"} {
		if _, err := env.resolveText(t, &Session{Identity: "pleb"}, text); !errors.Is(err, ErrAuthorization) {
			t.Errorf("%s (pleb) error = %v, want ErrAuthorization", text, err)
		}
	}

	got, err := env.resolveText(t, &Session{Identity: "staff"}, "editor")
	if err != nil {
		t.Fatalf("editor (staff) error = %v", err)
	}
	if !strings.Contains(got, `href="/account/editor.html"`) || !strings.Contains(got, "{{{l10n(new_article)}}}") {
		t.Errorf("editor markup = %q", got)
	}

	got, err = env.resolveText(t, &Session{Identity: "boss"}, "admin")
	if err != nil {
		t.Fatalf("admin (boss) error = %v", err)
	}
	if !strings.Contains(got, `href="/account/admin.html"`) {
		t.Errorf("admin markup = %q", got)
	}
}

func TestResolveDrafts(t *testing.T) {
	env := setupTestResolver(t)
	uid := env.addUser(t, "writer", "", "")

	// A principal with no drafts renders nothing, not an error.
	got, err := env.resolveText(t, &Session{Identity: "writer"}, "drafts")
	if err != nil {
		t.Fatalf("drafts (none) error = %v", err)
	}
	if got != "" {
		t.Errorf("drafts with no rows = %q, want empty", got)
	}

	first, err := env.store.InsertDraft(env.ctx, uid, "drafts/one.md", "First Draft")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = env.store.InsertDraft(env.ctx, uid, "drafts/two.md", ""); err != nil {
		t.Fatal(err)
	}

	got, err = env.resolveText(t, &Session{Identity: "writer"}, "drafts")
	if err != nil {
		t.Fatalf("drafts error = %v", err)
	}
	// Two drafts still render the minimum visible size of 2.
	if !strings.Contains(got, `size="2"`) {
		t.Errorf("drafts select = %q, want size=\"2\"", got)
	}
	if !strings.Contains(got, fmt.Sprintf(`<option value="%d">First Draft</option>`, first)) {
		t.Errorf("drafts select = %q, want titled option", got)
	}
	if !strings.Contains(got, "&lt;untitled&gt;") {
		t.Errorf("drafts select = %q, want untitled fallback", got)
	}

	// Seven drafts clamp to the maximum visible size of 5.
	for i := 3; i <= 7; i++ {
		if _, err = env.store.InsertDraft(env.ctx, uid, fmt.Sprintf("drafts/%d.md", i), fmt.Sprintf("Draft %d", i)); err != nil {
			t.Fatal(err)
		}
	}
	got, err = env.resolveText(t, &Session{Identity: "writer"}, "drafts")
	if err != nil {
		t.Fatalf("drafts error = %v", err)
	}
	if !strings.Contains(got, `size="5"`) {
		t.Errorf("drafts select = %q, want size=\"5\"", got)
	}
	if strings.Count(got, "<option") != 7 {
		t.Errorf("drafts select has %d options, want 7", strings.Count(got, "<option"))
	}
}

func TestResolveAdminPanel(t *testing.T) {
	env := setupTestResolver(t)

	boss := env.addUser(t, "boss", "Big", "Boss")
	if err := env.store.AddAdmin(env.ctx, boss); err != nil {
		t.Fatal(err)
	}
	staff := env.addUser(t, "staff", "", "")
	if err := env.store.AddEmployee(env.ctx, staff); err != nil {
		t.Fatal(err)
	}
	env.addUser(t, "pleb", "", "")

	got, err := env.resolveText(t, &Session{Identity: "boss"}, "admin-panel")
	if err != nil {
		t.Fatalf("admin-panel error = %v", err)
	}

	for _, want := range []string{
		"<th>UID</th>",
		"<th>{{{l10n(account_username)}}}</th>",
		"<th>{{{l10n(account_isadmin)}}}</th>",
		`<a href="mailto:staff@example.com">staff@example.com</a>`,
		fmt.Sprintf(`checked="checked" oninput="make_employee(this, %d)"`, staff),
		fmt.Sprintf(`checked="checked" oninput="make_admin(this, %d)"`, boss),
		fmt.Sprintf(` oninput="make_admin(this, %d)"`, staff),
	} {
		if !strings.Contains(got, want) {
			t.Errorf("admin-panel table missing %q\nfull table:\n%s", want, got)
		}
	}
	if strings.Count(got, "<tr>") != 4 {
		t.Errorf("admin-panel has %d rows, want header + 3 users", strings.Count(got, "<tr>"))
	}
	// Staff is not an admin, so its admin checkbox is unchecked.
	if strings.Contains(got, fmt.Sprintf(`checked="checked" oninput="make_admin(this, %d)"`, staff)) {
		t.Error("admin-panel marks staff as admin")
	}
}

func TestResolveMe(t *testing.T) {
	env := setupTestResolver(t)
	env.addUser(t, "jane", "Jane", "")

	got, err := env.resolveText(t, &Session{Identity: "jane"}, "me.email")
	if err != nil {
		t.Fatalf("me.email error = %v", err)
	}
	if got != "jane@example.com" {
		t.Errorf("me.email = %q, want jane@example.com", got)
	}

	// The credential hash is refused for everyone, principal or not.
	for _, sess := range []*Session{{Identity: "jane"}, {}} {
		got, err = env.resolveText(t, sess, "me.pwhash")
		if err != nil {
			t.Fatalf("me.pwhash error = %v", err)
		}
		if got != pwhashRefusal {
			t.Errorf("me.pwhash = %q, want the fixed refusal string", got)
		}
		if strings.Contains(got, "stored-credential-hash") {
			t.Error("me.pwhash leaked the stored hash")
		}
	}

	// Anonymous and unknown principals render nothing.
	got, err = env.resolveText(t, &Session{}, "me.email")
	if err != nil || got != "" {
		t.Errorf("me.email (anonymous) = %q, %v, want empty", got, err)
	}
	got, err = env.resolveText(t, &Session{Identity: "ghost"}, "me.email")
	if err != nil || got != "" {
		t.Errorf("me.email (unknown user) = %q, %v, want empty", got, err)
	}
}

func TestResolvePath(t *testing.T) {
	env := setupTestResolver(t)
	env.writeContent(t, "header.html", "<header>plain</header>")
	env.writeContent(t, "notes/hello.md", "# Hello\n\nworld")

	got, err := env.resolveText(t, &Session{}, "/header.html")
	if err != nil {
		t.Fatalf("/header.html error = %v", err)
	}
	if got != "<header>plain</header>" {
		t.Errorf("non-markdown file = %q, want verbatim contents", got)
	}

	got, err = env.resolveText(t, &Session{}, "/notes/hello.md")
	if err != nil {
		t.Fatalf("/notes/hello.md error = %v", err)
	}
	if !strings.Contains(got, "<h1") || !strings.Contains(got, "Hello") {
		t.Errorf("markdown file = %q, want rendered HTML", got)
	}

	// Path validation failures propagate.
	_, err = env.resolveText(t, &Session{}, "/../secret.txt")
	var illegal *pubpath.IllegalPathError
	if !errors.As(err, &illegal) {
		t.Errorf("traversal error = %v, want IllegalPathError", err)
	}

	// Missing files propagate as I/O errors for the bare path form.
	if _, err = env.resolveText(t, &Session{}, "/missing.html"); err == nil {
		t.Error("missing file resolved without error")
	}
}

func TestResolvePositional(t *testing.T) {
	env := setupTestResolver(t)
	env.writeContent(t, "fragment.md", "*hi*")

	sess := &Session{Args: []string{"fragment.md"}}
	got, err := env.resolveText(t, sess, "%1")
	if err != nil {
		t.Fatalf("%%1 error = %v", err)
	}
	if !strings.Contains(got, "<em>hi</em>") {
		t.Errorf("%%1 = %q, want rendered markdown", got)
	}

	var notFound *NotFoundError
	if _, err = env.resolveText(t, sess, "%2"); !errors.As(err, &notFound) {
		t.Errorf("%%2 error = %v, want NotFoundError", err)
	}
	// Positional references are 1-based; %0 is out of range by definition.
	if _, err = env.resolveText(t, sess, "%0"); !errors.As(err, &notFound) {
		t.Errorf("%%0 error = %v, want NotFoundError", err)
	}
}

func TestResolveL10n(t *testing.T) {
	env := setupTestResolver(t)

	got, err := env.resolveText(t, &Session{}, "l10n(greeting)")
	if err != nil {
		t.Fatalf("l10n(greeting) error = %v", err)
	}
	if got != "hello" {
		t.Errorf("l10n(greeting) = %q, want hello", got)
	}

	// A missing key is fatal unless wrapped in maybe().
	if _, err = env.resolveText(t, &Session{}, "l10n(no_such_key)"); err == nil {
		t.Error("l10n(no_such_key) resolved without error")
	}
	got, err = env.resolveText(t, &Session{}, "maybe(l10n(no_such_key))")
	if err != nil || got != "" {
		t.Errorf("maybe(l10n(no_such_key)) = %q, %v, want empty, nil", got, err)
	}
}

func TestResolveArticlePositional(t *testing.T) {
	env := setupTestResolver(t)
	uid := env.addUser(t, "tolstoy", "Leo", "Tolstoy")
	env.addArticle(t, "articles/war.md", "War and Peace", "2024-05-01 12:00:00", uid, "# War\n\nand peace")
	env.addArticle(t, "articles/ghost.md", "Ghost", "2024-06-01 12:00:00", uid, "") // row without a file

	sess := &Session{Args: []string{"articles/war.md", "articles/unknown.md", "articles/ghost.md"}}

	got, err := env.resolveText(t, sess, "article%1")
	if err != nil {
		t.Fatalf("article%%1 error = %v", err)
	}
	for _, want := range []string{
		"<article><h1>War and Peace</h1>2024-05-01",
		` {{{l10n(by_author)}}} Leo "tolstoy" Tolstoy`,
		"and peace",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("article%%1 = %q, missing %q", got, want)
		}
	}

	var notFound *NotFoundError
	// Missing positional argument.
	if _, err = env.resolveText(t, sess, "article%9"); !errors.As(err, &notFound) {
		t.Errorf("article%%9 error = %v, want NotFoundError", err)
	}
	// Argument names a path with no store row.
	if _, err = env.resolveText(t, sess, "article%2"); !errors.As(err, &notFound) {
		t.Errorf("article%%2 error = %v, want NotFoundError", err)
	}
	// Row exists but the file is gone from disk.
	if _, err = env.resolveText(t, sess, "article%3"); !errors.As(err, &notFound) {
		t.Errorf("article%%3 error = %v, want NotFoundError", err)
	}
}

func TestResolveByAge(t *testing.T) {
	env := setupTestResolver(t)
	uid := env.addUser(t, "author", "", "")
	env.addArticle(t, "articles/oldest.md", "Oldest", "2024-01-01 12:00:00", uid, "old body")
	env.addArticle(t, "articles/middle.md", "Middle", "2024-02-01 12:00:00", uid, "middle body")
	env.addArticle(t, "articles/newest.md", "Newest", "2024-03-01 12:00:00", uid, "new body")

	// Offset 0 is the most recently created row.
	got, err := env.resolveText(t, &Session{}, "preview~0")
	if err != nil {
		t.Fatalf("preview~0 error = %v", err)
	}
	if !strings.Contains(got, `<a href="articles/newest.md">Newest</a>`) {
		t.Errorf("preview~0 = %q, want the newest article", got)
	}
	if strings.Contains(got, "new body") {
		t.Error("preview card included the article body")
	}

	got, err = env.resolveText(t, &Session{}, "preview~2")
	if err != nil {
		t.Fatalf("preview~2 error = %v", err)
	}
	if !strings.Contains(got, "Oldest") {
		t.Errorf("preview~2 = %q, want the oldest article", got)
	}

	// One past the oldest: preview errors, article is silently empty.
	var notFound *NotFoundError
	if _, err = env.resolveText(t, &Session{}, "preview~3"); !errors.As(err, &notFound) {
		t.Errorf("preview~3 error = %v, want NotFoundError", err)
	}
	got, err = env.resolveText(t, &Session{}, "article~3")
	if err != nil || got != "" {
		t.Errorf("article~3 = %q, %v, want empty, nil", got, err)
	}

	got, err = env.resolveText(t, &Session{}, "article~0")
	if err != nil {
		t.Fatalf("article~0 error = %v", err)
	}
	if !strings.Contains(got, "<h1>Newest</h1>") || !strings.Contains(got, "new body") {
		t.Errorf("article~0 = %q, want the full newest article", got)
	}

	// An in-range offset whose file is missing is a hard miss.
	env.addArticle(t, "articles/broken.md", "Broken", "2024-04-01 12:00:00", uid, "")
	if _, err = env.resolveText(t, &Session{}, "article~0"); !errors.As(err, &notFound) {
		t.Errorf("article~0 (missing file) error = %v, want NotFoundError", err)
	}
}

func TestResolveByTitle(t *testing.T) {
	env := setupTestResolver(t)
	uid := env.addUser(t, "sun", "", "Tzu")
	env.addArticle(t, "articles/war.md", "The Art of War", "2024-01-01 00:00:00", uid, "know your enemy")
	env.addArticle(t, "articles/lost.md", "Lost", "2024-02-01 00:00:00", uid, "")

	got, err := env.resolveText(t, &Session{}, "preview The Art of War")
	if err != nil {
		t.Fatalf("preview by title error = %v", err)
	}
	if !strings.Contains(got, `<a href="articles/war.md">The Art of War</a>`) {
		t.Errorf("preview by title = %q", got)
	}
	if !strings.Contains(got, `{{{l10n(by_author)}}} "sun" Tzu`) {
		t.Errorf("preview by title = %q, want author credit", got)
	}

	got, err = env.resolveText(t, &Session{}, "article The Art of War")
	if err != nil {
		t.Fatalf("article by title error = %v", err)
	}
	if !strings.Contains(got, "know your enemy") {
		t.Errorf("article by title = %q, want body", got)
	}

	// No row: the store error propagates untranslated for the title forms.
	if _, err = env.resolveText(t, &Session{}, "preview Nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("preview Nope error = %v, want sql.ErrNoRows", err)
	}
	if _, err = env.resolveText(t, &Session{}, "article Nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("article Nope error = %v, want sql.ErrNoRows", err)
	}

	// Row exists, file does not: missing resource.
	var notFound *NotFoundError
	if _, err = env.resolveText(t, &Session{}, "article Lost"); !errors.As(err, &notFound) {
		t.Errorf("article Lost error = %v, want NotFoundError", err)
	}
}

func TestResolveMaybe(t *testing.T) {
	env := setupTestResolver(t)

	// maybe() swallows every class of inner failure.
	for _, text := range []string{
		"maybe(article%99)",     // missing resource
		"maybe(editor)",         // authorization failure
		"maybe(l10n(no_key))",   // catalog failure
		"maybe(/missing.html)",  // filesystem failure
		"maybe(maybe(login))",   // nesting violation, rejected and absorbed
		"maybe(maybe(bogus!!))", // outer parse never even succeeds... see below
	} {
		if text == "maybe(maybe(bogus!!))" {
			// Inner parse errors surface from Parse, not Resolve.
			if _, err := Parse(text); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", text)
			}
			continue
		}
		got, err := env.resolveText(t, &Session{}, text)
		if err != nil {
			t.Errorf("%s error = %v, want nil", text, err)
		}
		if got != "" {
			t.Errorf("%s = %q, want empty", text, got)
		}
	}

	// maybe() passes successful inner output through unchanged.
	got, err := env.resolveText(t, &Session{}, "maybe(l10n(greeting))")
	if err != nil || got != "hello" {
		t.Errorf("maybe(l10n(greeting)) = %q, %v, want hello", got, err)
	}

	// The base resolver is where the nesting rejection lives.
	p, err := Parse("maybe(login)")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = env.resolver.resolveBase(env.ctx, &Session{}, p); !errors.Is(err, ErrNestedMaybe) {
		t.Errorf("resolveBase(maybe) error = %v, want ErrNestedMaybe", err)
	}
}
