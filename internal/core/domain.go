package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxCategoryNameLen = 50
	MaxSourceLen       = 100
	MaxTitleLen        = 100
	MaxNoteLen         = 1000
	MaxUsernameLen     = 150
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	Category struct {
		ID   int64
		Name string
	}

	Expense struct {
		ID         int64
		UserID     int64
		CategoryID *int64 // nil when uncategorised or the category was deleted
		// CategoryName is filled on reads only.
		CategoryName string
		Amount       Money
		Date         Date
		Note         string
	}

	Income struct {
		ID     int64
		UserID int64
		Source string
		Amount Money
		Date   Date
	}

	SavingsGoal struct {
		ID              int64
		UserID          int64
		Title           string
		TargetAmount    Money
		Deadline        *Date
		StartingBalance Money
	}

	// ExpenseFilter narrows an expense listing. Zero values disable a criterion.
	ExpenseFilter struct {
		Category string
		Start    *Date
		End      *Date
		Query    string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (e Expense) Validate() error {
	v := NewValidationError()
	if e.Date.IsZero() {
		v.Add("date", "This field is required.")
	}
	if utf8.RuneCountInString(e.Note) > MaxNoteLen {
		v.Add("note", "Ensure this value has at most 1000 characters.")
	}
	if e.CategoryID != nil && *e.CategoryID <= 0 {
		v.Add("category", "Select a valid choice.")
	}
	return v.OrNil()
}

func (i Income) Validate() error {
	v := NewValidationError()
	source := strings.TrimSpace(i.Source)
	switch {
	case source == "":
		v.Add("source", "This field is required.")
	case utf8.RuneCountInString(source) > MaxSourceLen:
		v.Add("source", "Ensure this value has at most 100 characters.")
	}
	if i.Date.IsZero() {
		v.Add("date", "This field is required.")
	}
	return v.OrNil()
}

func (g SavingsGoal) Validate() error {
	v := NewValidationError()
	title := strings.TrimSpace(g.Title)
	switch {
	case title == "":
		v.Add("title", "This field is required.")
	case utf8.RuneCountInString(title) > MaxTitleLen:
		v.Add("title", "Ensure this value has at most 100 characters.")
	}
	return v.OrNil()
}

func (c Category) Validate() error {
	v := NewValidationError()
	name := strings.TrimSpace(c.Name)
	switch {
	case name == "":
		v.Add("name", "This field is required.")
	case utf8.RuneCountInString(name) > MaxCategoryNameLen:
		v.Add("name", "Ensure this value has at most 50 characters.")
	}
	return v.OrNil()
}

// Normalized trims the free-text criteria and drops the "all" category sentinel.
// A date range applies only when both bounds are set; a lone bound is dropped.
func (f ExpenseFilter) Normalized() ExpenseFilter {
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, "all") {
		f.Category = ""
	}
	f.Query = strings.TrimSpace(f.Query)
	if f.Start == nil || f.End == nil {
		f.Start, f.End = nil, nil
	}
	return f
}

// IsZero reports whether the filter lets every expense through.
func (f ExpenseFilter) IsZero() bool {
	f = f.Normalized()
	return f.Category == "" && f.Start == nil && f.End == nil && f.Query == ""
}
