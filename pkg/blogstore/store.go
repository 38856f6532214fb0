// Package blogstore is the read/write layer over the relational content
// store: user accounts, employee/admin role tables, article metadata and
// drafts. The placeholder resolver only ever reads through it; the server
// binary also uses the write half for account and role management.
package blogstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Article is the metadata row for a published article. The body lives on
// disk at Path; Date is the creation date formatted yyyy-mm-dd.
type Article struct {
	Path   string
	Title  string
	Date   string
	Author int64
}

// Draft is an unpublished article owned by a single author. Title may be
// absent for drafts that have not been named yet.
type Draft struct {
	ID    int64
	Path  string
	Title sql.NullString
}

// User is the account row as listed in the admin panel. The password hash
// is intentionally not part of this projection.
type User struct {
	ID        int64
	Username  string
	Firstname sql.NullString
	Lastname  sql.NullString
	Email     string
}

// NameParts holds the naming columns used to format an author credit.
type NameParts struct {
	First    sql.NullString
	Last     sql.NullString
	Username string
}

// Store is the handle for all content-store queries. It holds the database
// connection and prepared statements for the hot read paths. All methods
// are safe for concurrent use.
type Store struct {
	db               *sql.DB
	logger           *slog.Logger
	stmtUserNames    *sql.Stmt
	stmtIsEmployee   *sql.Stmt
	stmtIsAdmin      *sql.Stmt
	stmtIsEmployeeID *sql.Stmt
	stmtIsAdminID    *sql.Stmt
	stmtDraftsFor    *sql.Stmt
	stmtUsers        *sql.Stmt
	stmtArticlePath  *sql.Stmt
	stmtArticleTitle *sql.Stmt
	stmtArticlesAge  *sql.Stmt
	stmtPwhash       *sql.Stmt
}

// NewStore prepares all statements and returns a ready Store. SetupSchema
// must have been run against the database beforehand.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}

	prepared := []struct {
		stmt  **sql.Stmt
		query string
	}{
		{&s.stmtUserNames, `SELECT firstname, lastname, username FROM users WHERE id = ?`},
		{&s.stmtIsEmployee, `SELECT employees.id FROM employees WHERE employees.uid = (SELECT users.id FROM users WHERE username = ?)`},
		{&s.stmtIsAdmin, `SELECT admins.id FROM admins WHERE admins.uid = (SELECT users.id FROM users WHERE username = ?)`},
		{&s.stmtIsEmployeeID, `SELECT id FROM employees WHERE uid = ?`},
		{&s.stmtIsAdminID, `SELECT id FROM admins WHERE uid = ?`},
		{&s.stmtDraftsFor, `SELECT id, path, title FROM drafts WHERE drafts.author = (SELECT users.id FROM users WHERE username = ?)`},
		{&s.stmtUsers, `SELECT id, username, firstname, lastname, email FROM users ORDER BY id`},
		{&s.stmtArticlePath, `SELECT path, title, strftime('%Y-%m-%d', cdate) AS date, author FROM articles WHERE path = ?`},
		{&s.stmtArticleTitle, `SELECT path, title, strftime('%Y-%m-%d', cdate) AS date, author FROM articles WHERE title = ?`},
		{&s.stmtArticlesAge, `SELECT path, title, strftime('%Y-%m-%d', cdate) AS date, author FROM articles ORDER BY cdate, id`},
		{&s.stmtPwhash, `SELECT pwhash FROM users WHERE username = ?`},
	}
	for _, p := range prepared {
		stmt, err := db.Prepare(p.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement %q: %w", p.query, err)
		}
		*p.stmt = stmt
	}

	return s, nil
}

// Close releases the prepared statements. It does not close the underlying
// database connection, which the Store does not own.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtUserNames, s.stmtIsEmployee, s.stmtIsAdmin, s.stmtIsEmployeeID,
		s.stmtIsAdminID, s.stmtDraftsFor, s.stmtUsers, s.stmtArticlePath,
		s.stmtArticleTitle, s.stmtArticlesAge, s.stmtPwhash,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// UserNames returns the naming columns for the given user id, or nil if no
// such user exists.
func (s *Store) UserNames(ctx context.Context, uid int64) (*NameParts, error) {
	var parts NameParts
	err := s.stmtUserNames.QueryRowContext(ctx, uid).Scan(&parts.First, &parts.Last, &parts.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &parts, nil
}

// IsEmployee reports whether the named user has an employees row.
// Unknown usernames are simply not employees.
func (s *Store) IsEmployee(ctx context.Context, username string) (bool, error) {
	return s.membership(ctx, s.stmtIsEmployee, username)
}

// IsAdmin reports whether the named user has an admins row.
func (s *Store) IsAdmin(ctx context.Context, username string) (bool, error) {
	return s.membership(ctx, s.stmtIsAdmin, username)
}

// IsEmployeeID is IsEmployee keyed by user id instead of username.
func (s *Store) IsEmployeeID(ctx context.Context, uid int64) (bool, error) {
	return s.membership(ctx, s.stmtIsEmployeeID, uid)
}

// IsAdminID is IsAdmin keyed by user id instead of username.
func (s *Store) IsAdminID(ctx context.Context, uid int64) (bool, error) {
	return s.membership(ctx, s.stmtIsAdminID, uid)
}

func (s *Store) membership(ctx context.Context, stmt *sql.Stmt, key any) (bool, error) {
	var id int64
	err := stmt.QueryRowContext(ctx, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DraftsFor returns every draft owned by the named user, in insertion order.
func (s *Store) DraftsFor(ctx context.Context, username string) ([]Draft, error) {
	rows, err := s.stmtDraftsFor.QueryContext(ctx, username)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err = rows.Scan(&d.ID, &d.Path, &d.Title); err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// Users returns every account row, ordered by id. Used by the admin panel.
func (s *Store) Users(ctx context.Context) ([]User, error) {
	rows, err := s.stmtUsers.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var users []User
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.ID, &u.Username, &u.Firstname, &u.Lastname, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ArticleByPath returns the article row for an exact path match. A missing
// row surfaces as sql.ErrNoRows for the caller to classify.
func (s *Store) ArticleByPath(ctx context.Context, path string) (Article, error) {
	var a Article
	err := s.stmtArticlePath.QueryRowContext(ctx, path).Scan(&a.Path, &a.Title, &a.Date, &a.Author)
	return a, err
}

// ArticleByTitle returns the article row for an exact title match. A
// missing row surfaces as sql.ErrNoRows for the caller to classify.
func (s *Store) ArticleByTitle(ctx context.Context, title string) (Article, error) {
	var a Article
	err := s.stmtArticleTitle.QueryRowContext(ctx, title).Scan(&a.Path, &a.Title, &a.Date, &a.Author)
	return a, err
}

// ArticlesByAge returns all article rows ordered oldest first.
func (s *Store) ArticlesByAge(ctx context.Context) ([]Article, error) {
	rows, err := s.stmtArticlesAge.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var articles []Article
	for rows.Next() {
		var a Article
		if err = rows.Scan(&a.Path, &a.Title, &a.Date, &a.Author); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// PasswordHash returns the stored credential hash for the named user.
// Only the authentication path in the server binary calls this; the
// placeholder resolver never exposes it.
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.stmtPwhash.QueryRowContext(ctx, username).Scan(&hash)
	return hash, err
}

// InsertUser creates an account row and returns its id. Firstname and
// lastname may be empty, which stores NULL.
func (s *Store) InsertUser(ctx context.Context, username, firstname, lastname, email, pwhash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, firstname, lastname, email, pwhash) VALUES (?, ?, ?, ?, ?)`,
		username, nullable(firstname), nullable(lastname), email, pwhash)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "User created", slog.String("username", username), slog.Int64("uid", id))
	return id, nil
}

// InsertArticle records article metadata. The cdate parameter is a
// datetime string understood by SQLite; pass "" to use the current time.
func (s *Store) InsertArticle(ctx context.Context, path, title, cdate string, author int64) error {
	var err error
	if cdate == "" {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO articles (path, title, author) VALUES (?, ?, ?)`, path, title, author)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO articles (path, title, cdate, author) VALUES (?, ?, ?, ?)`, path, title, cdate, author)
	}
	if err != nil {
		return fmt.Errorf("failed to insert article %q: %w", path, err)
	}
	return nil
}

// InsertDraft records a draft for the given author id and returns the
// draft id.
func (s *Store) InsertDraft(ctx context.Context, author int64, path, title string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (author, path, title) VALUES (?, ?, ?)`, author, path, nullable(title))
	if err != nil {
		return 0, fmt.Errorf("failed to insert draft %q: %w", path, err)
	}
	return res.LastInsertId()
}

// AddEmployee grants the employee role to a user id. Granting an already
// held role is a no-op.
func (s *Store) AddEmployee(ctx context.Context, uid int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO employees (uid) VALUES (?)`, uid)
	return err
}

// RemoveEmployee revokes the employee role from a user id.
func (s *Store) RemoveEmployee(ctx context.Context, uid int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE uid = ?`, uid)
	return err
}

// AddAdmin grants the admin role to a user id. Granting an already held
// role is a no-op.
func (s *Store) AddAdmin(ctx context.Context, uid int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO admins (uid) VALUES (?)`, uid)
	return err
}

// RemoveAdmin revokes the admin role from a user id.
func (s *Store) RemoveAdmin(ctx context.Context, uid int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE uid = ?`, uid)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
