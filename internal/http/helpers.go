package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"finledger/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isValidationError reports whether an error stems from user input rather
// than from the system.
func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidCategory) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidKind) ||
		errors.Is(err, core.ErrDescriptionTooLong)
}

// render executes the named template. Template failures surface as the
// generic error page rather than a half-written body.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// renderFailure logs an internal failure and redirects to the error page.
func (s *Server) renderFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), "Request failed", "op", op, "url", r.URL.Path, "error", err)
	http.Redirect(w, r, "/error", http.StatusSeeOther)
}
