package core

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Balance top-up sources.
const (
	SourceSalary     BalanceSource = "SALARY"
	SourceInvestment BalanceSource = "INVESTMENT"
	SourceGift       BalanceSource = "GIFT"
	SourceOther      BalanceSource = "OTHER"
)

type (
	// ID identifies a user or an entity. IDs are assigned by the store.
	ID int64

	BalanceSource string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	User struct {
		ID           ID        `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Balance      Money     `json:"balance"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Expense struct {
		ID          ID     `json:"id"`
		UserID      ID     `json:"user_id"`
		Category    string `json:"category"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
	}

	ExpenseInput struct {
		Category    string `json:"category"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Description string `json:"description"`
	}

	Investment struct {
		ID         ID         `json:"id"`
		UserID     ID         `json:"user_id"`
		Name       string     `json:"name"`
		Amount     Money      `json:"amount"`
		CreatedAt  time.Time  `json:"created_at"`
		ClosedAt   *time.Time `json:"closed_at"`
		ProfitLoss *Money     `json:"profit_loss"`
		IsActive   bool       `json:"is_active"`
	}

	InvestmentInput struct {
		Name   string `json:"name"`
		Amount Money  `json:"amount"`
	}

	Budget struct {
		ID           ID     `json:"id"`
		UserID       ID     `json:"user_id"`
		Category     string `json:"category"`
		TargetAmount Money  `json:"target_amount"`
		StartDate    Date   `json:"start_date"`
		EndDate      Date   `json:"end_date"`
	}

	BudgetInput struct {
		Category     string `json:"category"`
		TargetAmount Money  `json:"target_amount"`
		StartDate    Date   `json:"start_date"`
		EndDate      Date   `json:"end_date"`
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan accepts the TEXT form used by SQLite and the DATE form returned by Postgres.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("core: cannot scan %T into Date", src)
}

func (d *Date) scanText(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("core: scan date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, ErrInvalidMonth
	}
	first := NewDate(year, month, 1)
	last := Date{Time: first.AddDate(0, 1, -1)}
	return first, last, nil
}

func (in ExpenseInput) Validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if err := in.Amount.ValidatePositive(); err != nil {
		return err
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

func (in InvestmentInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	return in.Amount.ValidatePositive()
}

// Settlement is the credit owed when the investment is closed with profitLoss.
func (i Investment) Settlement(profitLoss Money) Money {
	return i.Amount.Add(profitLoss)
}

func (in BudgetInput) Validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if err := in.TargetAmount.ValidatePositive(); err != nil {
		return err
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if in.EndDate.Before(in.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether d falls in [StartDate, EndDate], both ends inclusive.
func (b Budget) Contains(d Date) bool {
	return !d.Before(b.StartDate) && !d.After(b.EndDate)
}

// Overlaps reports whether two budgets share a category and at least one day.
func (b Budget) Overlaps(o Budget) bool {
	if !strings.EqualFold(strings.TrimSpace(b.Category), strings.TrimSpace(o.Category)) {
		return false
	}
	return !b.EndDate.Before(o.StartDate) && !o.EndDate.Before(b.StartDate)
}

// ParseBalanceSource accepts any casing of a known source.
func ParseBalanceSource(s string) (BalanceSource, error) {
	src := BalanceSource(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range BalanceSources() {
		if src == known {
			return src, nil
		}
	}
	return "", ErrInvalidSource
}

func BalanceSources() []BalanceSource {
	return []BalanceSource{SourceSalary, SourceInvestment, SourceGift, SourceOther}
}

// NormalizeEmail lowercases and trims an address and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || strings.Count(email, "@") != 1 {
		return "", ErrInvalidEmail
	}
	return email, nil
}
