package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"finledger/internal/services"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	loggedIn := false
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if _, err := s.users.CurrentUserID(r.Context(), cookie.Value); err == nil {
			loggedIn = true
		}
	}

	s.render(w, r, "home.html", struct {
		LoggedIn bool
	}{LoggedIn: loggedIn})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "login.html", struct {
			Error      bool
			Registered bool
		}{
			Error:      r.URL.Query().Has("error"),
			Registered: r.URL.Query().Has("registered"),
		})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
			http.Redirect(w, r, "/login?error", http.StatusSeeOther)
			return
		}

		email := strings.TrimSpace(r.Form.Get("email"))
		password := r.Form.Get("password")

		token, user, err := s.users.Login(r.Context(), email, password)
		if err != nil {
			slog.InfoContext(r.Context(), "Login failed", "email", email)
			http.Redirect(w, r, "/login?error", http.StatusSeeOther)
			return
		}

		slog.InfoContext(r.Context(), "Login succeeded", "user_id", user.ID, "email", user.Email)
		s.setSessionCookie(w, token)
		http.Redirect(w, r, "/account", http.StatusSeeOther)

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRegistration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "registration.html", struct {
			Error string
		}{})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
			s.renderRegistrationError(w, r, "Invalid request")
			return
		}

		name := sanitizeInput(r.Form.Get("name"))
		email := strings.TrimSpace(r.Form.Get("email"))
		password := r.Form.Get("password")

		if name == "" || email == "" || password == "" {
			s.renderRegistrationError(w, r, "All fields are required")
			return
		}

		user, err := s.users.Register(r.Context(), name, email, password)
		if err != nil {
			slog.InfoContext(r.Context(), "Registration failed", "email", email, "error", err)
			if errors.Is(err, services.ErrEmailTaken) {
				s.renderRegistrationError(w, r, "An account with this email already exists")
				return
			}
			s.renderRegistrationError(w, r, "Registration failed")
			return
		}

		slog.InfoContext(r.Context(), "User registered", "user_id", user.ID, "email", user.Email)
		http.Redirect(w, r, "/login?registered", http.StatusSeeOther)

	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderRegistrationError(w http.ResponseWriter, r *http.Request, msg string) {
	w.WriteHeader(http.StatusUnprocessableEntity)
	s.render(w, r, "registration.html", struct {
		Error string
	}{Error: msg})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "error.html", nil)
}
