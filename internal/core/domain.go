package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is the business date of an expense, distinct from the record
	// creation time. Calendar arithmetic on it always happens in UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single expense record owned by exactly one account.
	// OwnerID is stamped from the authenticated caller at creation and is
	// never settable through the API.
	Expense struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Amount    Money  `json:"amount"`
		Category  string `json:"category"`
		Date      Date   `json:"date"`
		OwnerID   string `json:"ownerId"`
		CreatedAt Date   `json:"createdAt"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = errors.New("title too long (max 200 characters)")
	ErrEmptyCategory   = errors.New("empty category")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
	ErrZeroDate        = errors.New("date is required")
)

// NewDate builds a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// dateLayouts are the accepted wire formats, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// UnmarshalJSON accepts RFC 3339 timestamps as well as plain calendar
// dates ("2006-01-02"). The parsed instant is normalized to UTC.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return errors.New("unparseable date: " + s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.UTC().Format(time.RFC3339) + `"`), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return ErrTitleTooLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Category) > 100 {
		return ErrCategoryTooLong
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return nil
}
