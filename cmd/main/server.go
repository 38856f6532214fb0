package main

import (
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CTAG07/Drosera/pkg/blogstore"
	"github.com/CTAG07/Drosera/pkg/i18n"
	"github.com/CTAG07/Drosera/pkg/placeholder"
	"github.com/CTAG07/Drosera/pkg/pubpath"
)

type Server struct {
	config    *Config
	db        *sql.DB
	logger    *slog.Logger
	store     *blogstore.Store
	sessions  *SessionManager
	resolvers map[string]*placeholder.Resolver
	mux       *http.ServeMux
}

func NewServer(config *Config, logger *slog.Logger, db *sql.DB, catalogs map[string]*i18n.Catalog) (*Server, error) {

	store, err := blogstore.NewStore(db, logger)
	if err != nil {
		return nil, err
	}

	resolvers := make(map[string]*placeholder.Resolver, len(catalogs))
	for lang, catalog := range catalogs {
		resolvers[lang] = placeholder.NewResolver(store, catalog, config.Server.ContentDir, logger)
	}

	server := &Server{
		config:    config,
		db:        db,
		logger:    logger,
		store:     store,
		sessions:  NewSessionManager(time.Duration(config.Server.SessionTTLMinutes) * time.Minute),
		resolvers: resolvers,
		mux:       http.NewServeMux(),
	}

	server.mux.HandleFunc("/auth/login", server.handleLogin)
	server.mux.HandleFunc("/auth/logout.html", server.handleLogout)
	server.mux.HandleFunc("/account/create", server.handleCreate)
	server.mux.HandleFunc("/account/role", server.handleRole)
	server.mux.HandleFunc("/", server.handlePage)

	return server, nil
}

// Close releases resources the server owns. The database connection is
// not the server's to close.
func (s *Server) Close() {
	s.store.Close()
}

// identity returns the authenticated username for a request, or "" for an
// anonymous visitor.
func (s *Server) identity(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return s.sessions.Lookup(cookie.Value)
}

// resolver picks the resolver for the request's language: ?lang= first,
// then the configured default.
func (s *Server) resolver(r *http.Request) *placeholder.Resolver {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if resolver, ok := s.resolvers[lang]; ok {
			return resolver
		}
	}
	return s.resolvers[s.config.Server.DefaultLang]
}

// handlePage serves a content file with every placeholder substituted.
// Positional arguments come from repeated "a" query parameters. The page
// is rendered fully before a single byte is written: an error mid-render
// must never leak a half-substituted page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/")
	if rel == "" {
		rel = "index.html"
	}

	resolver := s.resolver(r)
	if resolver == nil {
		s.logger.Error("No catalog for default language", "default_lang", s.config.Server.DefaultLang)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess := &placeholder.Session{
		Identity: s.identity(r),
		Args:     r.URL.Query()["a"],
	}

	// The path directive already does exactly what serving a page needs:
	// validate the path, read the file, render markdown when applicable.
	page, err := resolver.Resolve(r.Context(), sess, placeholder.Pattern{Kind: placeholder.KindPath, Text: rel})
	if err == nil {
		err = resolver.ReplaceAllRecursive(r.Context(), sess, &page)
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

// renderError maps a rendering failure to an HTTP status. Unexpected
// errors get logged; expected misses do not.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *placeholder.NotFoundError
	var illegal *pubpath.IllegalPathError
	switch {
	case errors.As(err, &notFound), errors.As(err, &illegal), errors.Is(err, fs.ErrNotExist):
		http.NotFound(w, r)
	case errors.Is(err, placeholder.ErrAuthorization):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		s.logger.Error("Failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	hash, err := s.store.PasswordHash(r.Context(), username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("Failed to load password hash", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	// Verify against a throwaway hash for unknown users so response time
	// does not reveal which usernames exist.
	if errors.Is(err, sql.ErrNoRows) {
		hash = unknownUserHash()
	}
	ok, err := verifyPassword(password, hash)
	if err != nil {
		s.logger.Error("Failed to verify password", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token, err := s.sessions.Create(username)
	if err != nil {
		s.logger.Error("Failed to create session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.logger.Info("User logged in", "username", username)
	s.setSessionCookie(w, token, time.Duration(s.config.Server.SessionTTLMinutes)*time.Minute)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Revoke(cookie.Value)
	}
	s.setSessionCookie(w, "", -time.Hour)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	email := r.PostFormValue("email")
	if username == "" || password == "" || email == "" {
		http.Error(w, "username, password and email are required", http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	_, err = s.store.InsertUser(r.Context(), username,
		r.PostFormValue("firstname"), r.PostFormValue("lastname"), email, hash)
	if err != nil {
		// Most likely a duplicate username; not worth distinguishing.
		http.Error(w, "account creation failed", http.StatusConflict)
		return
	}

	token, err := s.sessions.Create(username)
	if err != nil {
		s.logger.Error("Failed to create session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.setSessionCookie(w, token, time.Duration(s.config.Server.SessionTTLMinutes)*time.Minute)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleRole backs the admin panel's employee/admin checkboxes.
func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	identity := s.identity(r)
	if identity == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	isAdmin, err := s.store.IsAdmin(r.Context(), identity)
	if err != nil {
		s.logger.Error("Failed to check admin membership", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !isAdmin {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	uid, err := strconv.ParseInt(r.PostFormValue("uid"), 10, 64)
	if err != nil {
		http.Error(w, "invalid uid", http.StatusBadRequest)
		return
	}
	grant := r.PostFormValue("state") == "on"

	switch r.PostFormValue("role") {
	case "employee":
		if grant {
			err = s.store.AddEmployee(r.Context(), uid)
		} else {
			err = s.store.RemoveEmployee(r.Context(), uid)
		}
	case "admin":
		if grant {
			err = s.store.AddAdmin(r.Context(), uid)
		} else {
			err = s.store.RemoveAdmin(r.Context(), uid)
		}
	default:
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("Failed to update role", "uid", uid, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.logger.Info("Role updated", "by", identity, "uid", uid, "role", r.PostFormValue("role"), "granted", grant)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
