package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finledger/internal/core"
	"finledger/internal/services"
	appweb "finledger/web"
)

// SessionCookieName is the cookie that transports the session token.
const SessionCookieName = "jwt_token"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyUser
)

type Server struct {
	http.Server
	templates    *template.Template
	users        *services.UserService
	ledger       *services.LedgerService
	rateLimiter  *rateLimiter
	secureCookie bool
	readyCheck   func(ctx context.Context) error
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, users *services.UserService, ledger *services.LedgerService, secureCookie bool, readyCheck func(ctx context.Context) error) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		users:        users,
		ledger:       ledger,
		rateLimiter:  newRateLimiter(),
		secureCookie: secureCookie,
		readyCheck:   readyCheck,
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurity(s.handleHome))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/error", s.withSecurity(s.handleErrorPage))

	mux.HandleFunc("/login", s.withSecurity(s.handleLogin))
	mux.HandleFunc("/registration", s.withSecurity(s.handleRegistration))
	mux.HandleFunc("/logout", s.withSecurity(s.handleLogout))

	mux.HandleFunc("/account", s.withSecurity(s.withAuth(s.handleAccount)))
	for path, kind := range map[string]core.RecordKind{
		"/account/income":  core.KindIncome,
		"/account/expense": core.KindExpense,
	} {
		mux.HandleFunc(path, s.withSecurity(s.withAuth(s.handleRecordsPage(kind))))
		mux.HandleFunc(path+"/add", s.withSecurity(s.withAuth(s.handleAddForm(kind))))
		mux.HandleFunc(path+"/add-record", s.withSecurity(s.withAuth(s.handleAddRecord(kind))))
		mux.HandleFunc(path+"/edit", s.withSecurity(s.withAuth(s.handleEditRecord(kind))))
		mux.HandleFunc(path+"/update-record", s.withSecurity(s.withAuth(s.handleUpdateRecord(kind))))
		mux.HandleFunc(path+"/delete-record", s.withSecurity(s.withAuth(s.handleDeleteRecord(kind))))
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
			if n := s.rateLimiter.rejectedCount(); n > 0 {
				slog.Info("Rate limiter rejected requests during this run", "count", n)
			}
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurity adds security headers, rate limiting, request ids and request
// logging, and recovers panics into the error page.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutations only. Page loads stay cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				slog.ErrorContext(ctx, "Handler panicked",
					"request_id", requestID,
					"url", r.URL.Path,
					"panic", rec)
				http.Redirect(rw, r, "/error", http.StatusSeeOther)
			}

			duration := time.Since(start)
			slog.InfoContext(ctx, "Request completed",
				"request_id", requestID,
				"method", r.Method,
				"url", r.URL.Path,
				"status", rw.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", clientIP)
		}()

		next(rw, r)
	}
}

// withAuth resolves the session cookie into a user and stores it on the
// request context. Requests without a valid session are redirected to the
// login page.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := s.users.CurrentUser(r.Context(), cookie.Value)
		if err != nil {
			slog.InfoContext(r.Context(), "Session rejected", "url", r.URL.Path, "error", err)
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next(w, r.WithContext(ctx))
	}
}

// currentUser returns the authenticated user stored by withAuth.
func currentUser(r *http.Request) *core.User {
	user, _ := r.Context().Value(ctxKeyUser).(*core.User)
	return user
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   s.users.TokenLifetime(),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readyCheck != nil {
		if err := s.readyCheck(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
