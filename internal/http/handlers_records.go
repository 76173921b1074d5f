package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"finledger/internal/core"
	"finledger/internal/services"
)

// recordPageData feeds the per-kind ledger page template.
type recordPageData struct {
	User       *core.User
	Kind       core.RecordKind
	Title      string
	BasePath   string
	Categories []string
	Filter     string
	Set        core.RecordSet
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := currentUser(r)

	incomes, err := s.ledger.FindAll(r.Context(), user.ID, core.KindIncome, "")
	if err != nil {
		s.renderFailure(w, r, "load incomes", err)
		return
	}
	expenses, err := s.ledger.FindAll(r.Context(), user.ID, core.KindExpense, "")
	if err != nil {
		s.renderFailure(w, r, "load expenses", err)
		return
	}

	s.render(w, r, "account.html", struct {
		User         *core.User
		IncomeTotal  core.Money
		IncomeMonth  core.Money
		ExpenseTotal core.Money
		ExpenseMonth core.Money
	}{
		User:         user,
		IncomeTotal:  incomes.Total,
		IncomeMonth:  incomes.MonthTotal,
		ExpenseTotal: expenses.Total,
		ExpenseMonth: expenses.MonthTotal,
	})
}

// handleRecordsPage renders the ledger page for one record kind, optionally
// filtered by the category query parameter.
func (s *Server) handleRecordsPage(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		user := currentUser(r)
		filter := strings.TrimSpace(r.URL.Query().Get("category"))

		set, err := s.ledger.FindAll(r.Context(), user.ID, kind, filter)
		if err != nil {
			s.renderFailure(w, r, "load records", err)
			return
		}

		s.render(w, r, "records.html", recordPageData{
			User:       user,
			Kind:       kind,
			Title:      pageTitle(kind),
			BasePath:   basePath(kind),
			Categories: core.Categories(kind),
			Filter:     filter,
			Set:        set,
		})
	}
}

// handleAddForm renders the standalone add form for one record kind.
func (s *Server) handleAddForm(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		s.render(w, r, "add_record.html", struct {
			User       *core.User
			Title      string
			BasePath   string
			Categories []string
			Today      core.Date
		}{
			User:       currentUser(r),
			Title:      pageTitle(kind),
			BasePath:   basePath(kind),
			Categories: core.Categories(kind),
			Today:      core.Today(),
		})
	}
}

func (s *Server) handleAddRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		user := currentUser(r)
		category, amount, date, desc, err := parseRecordForm(r)
		if err != nil {
			slog.InfoContext(r.Context(), "Record form rejected", "kind", kind, "error", err)
			http.Redirect(w, r, basePath(kind)+"?invalid", http.StatusSeeOther)
			return
		}

		if _, err := s.ledger.SaveRecord(r.Context(), user.ID, kind, category, amount, date, desc); err != nil {
			if isValidationError(err) {
				slog.InfoContext(r.Context(), "Record rejected", "kind", kind, "error", err)
				http.Redirect(w, r, basePath(kind)+"?invalid", http.StatusSeeOther)
				return
			}
			s.renderFailure(w, r, "save record", err)
			return
		}

		http.Redirect(w, r, basePath(kind), http.StatusSeeOther)
	}
}

func (s *Server) handleEditRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		user := currentUser(r)
		rec, ok := s.ownedRecord(w, r, kind, user)
		if !ok {
			return
		}

		s.render(w, r, "edit_record.html", struct {
			User       *core.User
			Title      string
			BasePath   string
			Categories []string
			Record     *core.Record
		}{
			User:       user,
			Title:      pageTitle(kind),
			BasePath:   basePath(kind),
			Categories: core.Categories(kind),
			Record:     rec,
		})
	}
}

func (s *Server) handleUpdateRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		user := currentUser(r)
		rec, ok := s.ownedRecord(w, r, kind, user)
		if !ok {
			return
		}

		category, amount, date, desc, err := parseRecordForm(r)
		if err != nil {
			slog.InfoContext(r.Context(), "Record form rejected", "kind", kind, "id", rec.ID, "error", err)
			http.Redirect(w, r, basePath(kind)+"?invalid", http.StatusSeeOther)
			return
		}

		if _, err := s.ledger.UpdateRecord(r.Context(), kind, rec.ID, category, amount, date, desc); err != nil {
			if isValidationError(err) {
				http.Redirect(w, r, basePath(kind)+"?invalid", http.StatusSeeOther)
				return
			}
			s.renderFailure(w, r, "update record", err)
			return
		}

		http.Redirect(w, r, basePath(kind), http.StatusSeeOther)
	}
}

func (s *Server) handleDeleteRecord(kind core.RecordKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		user := currentUser(r)
		rec, ok := s.ownedRecord(w, r, kind, user)
		if !ok {
			return
		}

		if err := s.ledger.DeleteRecord(r.Context(), kind, rec.ID); err != nil {
			s.renderFailure(w, r, "delete record", err)
			return
		}

		http.Redirect(w, r, basePath(kind), http.StatusSeeOther)
	}
}

// ownedRecord loads the record named by the id parameter and enforces that it
// belongs to the requesting user. A miss and a foreign record look identical
// to the client.
func (s *Server) ownedRecord(w http.ResponseWriter, r *http.Request, kind core.RecordKind, user *core.User) (*core.Record, bool) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" && r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			idStr = r.Form.Get("id")
		}
	}

	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}

	rec, err := s.ledger.FindRecord(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		s.renderFailure(w, r, "find record", err)
		return nil, false
	}

	if rec.UserID != user.ID {
		slog.WarnContext(r.Context(), "Record ownership mismatch",
			"kind", kind,
			"id", id,
			"owner_id", rec.UserID,
			"user_id", user.ID)
		http.NotFound(w, r)
		return nil, false
	}

	return rec, true
}

// parseRecordForm extracts and normalizes the shared record form fields.
func parseRecordForm(r *http.Request) (category string, amount core.Money, date core.Date, desc string, err error) {
	if err = r.ParseForm(); err != nil {
		return "", core.Money{}, core.Date{}, "", err
	}

	category = sanitizeInput(r.Form.Get("category"))
	desc = sanitizeInput(r.Form.Get("description"))

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("amount")))
	if err != nil {
		return "", core.Money{}, core.Date{}, "", err
	}

	date, err = core.ParseDate(r.Form.Get("date"))
	if err != nil {
		return "", core.Money{}, core.Date{}, "", err
	}

	return category, core.Money{Cents: cents}, date, desc, nil
}

func basePath(kind core.RecordKind) string {
	if kind == core.KindIncome {
		return "/account/income"
	}
	return "/account/expense"
}

func pageTitle(kind core.RecordKind) string {
	if kind == core.KindIncome {
		return "Income"
	}
	return "Expenses"
}
