package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"

	KindIncome  RecordKind = "income"
	KindExpense RecordKind = "expense"

	// AllCategories is the filter sentinel meaning "no category filter".
	AllCategories = "All categories"

	// MaxDescriptionLen bounds record descriptions.
	MaxDescriptionLen = 100
)

type (
	Role string

	RecordKind string

	// Date is a calendar date with no time component. The zero value is
	// "no date" and never validates.
	Date struct {
		time.Time
	}

	// User is a registered account. Email is the case-insensitive unique key.
	User struct {
		ID           int64
		Name         string
		Email        string
		PasswordHash string
		Role         Role
	}

	// Record is a single income or expense entry. Every record belongs to
	// exactly one user; Kind selects the category enum that applies.
	Record struct {
		ID          int64
		Kind        RecordKind
		Category    string
		Amount      Money
		Date        Date
		Description string
		UserID      int64
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidKind        = errors.New("invalid record kind")
	ErrDescriptionTooLong = errors.New("description too long")
)

var (
	incomeCategories  = []string{"SALARY", "BONUS", "INVESTMENT", "UNDERWORKING"}
	expenseCategories = []string{"FOOD", "TRANSPORT", "FUN"}
)

// Categories returns the closed category enum for a record kind.
func Categories(kind RecordKind) []string {
	switch kind {
	case KindIncome:
		return incomeCategories
	case KindExpense:
		return expenseCategories
	default:
		return nil
	}
}

// ValidCategory reports whether name is a member of kind's category enum.
func ValidCategory(kind RecordKind, name string) bool {
	for _, c := range Categories(kind) {
		if c == name {
			return true
		}
	}
	return false
}

func (k RecordKind) Validate() error {
	switch k {
	case KindIncome, KindExpense:
		return nil
	default:
		return ErrInvalidKind
	}
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as ISO YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// InMonth reports whether the date falls in the given calendar year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && int(d.Month()) == month
}

func (r Record) Validate() error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if !ValidCategory(r.Kind, r.Category) {
		return ErrInvalidCategory
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if len(r.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}
