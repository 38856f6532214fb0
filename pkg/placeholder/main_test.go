package placeholder

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/CTAG07/Drosera/pkg/blogstore"
	"github.com/CTAG07/Drosera/pkg/i18n"
	_ "modernc.org/sqlite"
)

// testEnv bundles everything a resolver test needs: a seeded store, a
// catalog, a content root and the resolver on top of them.
type testEnv struct {
	ctx      context.Context
	store    *blogstore.Store
	resolver *Resolver
	root     string
}

var testCatalogEntries = map[string]string{
	"login":              "Log in",
	"register":           "Register",
	"logout":             "Log out",
	"logged_in_as":       "Logged in as",
	"new_article":        "New article",
	"admin_panel":        "Admin panel",
	"by_author":          "by",
	"account_username":   "Username",
	"account_firstname":  "First name",
	"account_lastname":   "Last name",
	"account_email":      "Email",
	"account_isemployee": "Employee",
	"account_isadmin":    "Admin",
	"greeting":           "hello",
	"nested":             "{{{l10n(greeting)}}} world",
}

// setupTestResolver creates a SQLite-backed store under t.TempDir, an
// in-memory catalog and an empty content root. Fixtures are seeded by the
// individual tests.
func setupTestResolver(t *testing.T) *testEnv {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = blogstore.SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := blogstore.NewStore(db, logger)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(store.Close)

	root := t.TempDir()
	catalog := i18n.NewCatalog("en", testCatalogEntries)
	return &testEnv{
		ctx:      context.Background(),
		store:    store,
		resolver: NewResolver(store, catalog, root, logger),
		root:     root,
	}
}

// addUser seeds an account and returns its id. Empty first/last names
// store as NULL.
func (e *testEnv) addUser(t *testing.T, username, first, last string) int64 {
	t.Helper()
	uid, err := e.store.InsertUser(e.ctx, username, first, last, username+"@example.com", "stored-credential-hash")
	if err != nil {
		t.Fatalf("InsertUser(%q) error = %v", username, err)
	}
	return uid
}

// addArticle seeds an article row and, unless body is empty, the backing
// file under the content root.
func (e *testEnv) addArticle(t *testing.T, path, title, cdate string, author int64, body string) {
	t.Helper()
	if err := e.store.InsertArticle(e.ctx, path, title, cdate, author); err != nil {
		t.Fatalf("InsertArticle(%q) error = %v", path, err)
	}
	if body != "" {
		e.writeContent(t, path, body)
	}
}

// writeContent places a file below the content root.
func (e *testEnv) writeContent(t *testing.T, rel, body string) {
	t.Helper()
	full := filepath.Join(e.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

// resolveText is a shorthand that parses and tolerantly resolves a single
// directive.
func (e *testEnv) resolveText(t *testing.T, sess *Session, text string) (string, error) {
	t.Helper()
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", text, err)
	}
	return e.resolver.Resolve(e.ctx, sess, p)
}
