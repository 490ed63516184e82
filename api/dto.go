/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Internally all money is decimal.Decimal. DTOs carry amounts as float64
  rounded to two decimals at this boundary only; no arithmetic happens on
  the float values.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types these convert from
*/
package api

import (
	"time"

	"github.com/mealdesk/canteen-ledger/ledger"
)

const dayFormat = "2006-01-02"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ExpenseDTO represents an expense row in API responses.
type ExpenseDTO struct {
	ID          string  `json:"id"`
	UserName    string  `json:"user_name"`
	Amount      float64 `json:"amount"`
	ExpenseDate string  `json:"expense_date"`
	Note        string  `json:"note,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// CreateExpenseRequest is the request to record an expense. Amount is a
// string so the boundary can reject imprecise or malformed input.
type CreateExpenseRequest struct {
	UserName    string `json:"user_name"`
	Amount      string `json:"amount"`
	ExpenseDate string `json:"expense_date"`
	Note        string `json:"note,omitempty"`
}

// PaymentDTO represents a payment row in API responses.
type PaymentDTO struct {
	ID          string  `json:"id"`
	UserName    string  `json:"user_name"`
	Amount      float64 `json:"amount"`
	PaymentDate string  `json:"payment_date"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// CreatePaymentRequest is the request to record a payment.
type CreatePaymentRequest struct {
	UserName    string `json:"user_name"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date"`
}

// UserDTO represents a directory entry.
type UserDTO struct {
	ID        string `json:"id"`
	UserName  string `json:"user_name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to create a directory entry.
type CreateUserRequest struct {
	UserName  string `json:"user_name"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ProfileDTO represents the authenticated account.
type ProfileDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// SignupRequest is the request to register a profile. The username must
// already exist in the user directory.
type SignupRequest struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UserTotalDTO is the per-user balance rollup.
type UserTotalDTO struct {
	UserName         string       `json:"user_name"`
	DisplayName      string       `json:"display_name"`
	TotalAmount      float64      `json:"total_amount"`
	TotalPaid        float64      `json:"total_paid"`
	RemainingBalance float64      `json:"remaining_balance"`
	PaymentProgress  float64      `json:"payment_progress"`
	IsSettled        bool         `json:"is_settled"`
	Payments         []PaymentDTO `json:"payments"`
}

// DayBucketDTO is one day of summed activity for trend charts.
type DayBucketDTO struct {
	Date     string  `json:"date"`
	Expenses float64 `json:"expenses"`
	Payments float64 `json:"payments"`
}

// TopSpenderDTO is one row of the top-spenders report.
type TopSpenderDTO struct {
	UserName    string  `json:"user_name"`
	TotalAmount float64 `json:"total_amount"`
	TotalPaid   float64 `json:"total_paid"`
	Outstanding float64 `json:"outstanding"`
}

// SummaryDTO is the period rollup for reports and dashboards.
type SummaryDTO struct {
	RangeStart     string          `json:"range_start"`
	RangeEnd       string          `json:"range_end"`
	TotalExpenses  float64         `json:"total_expenses"`
	TotalPayments  float64         `json:"total_payments"`
	Outstanding    float64         `json:"outstanding"`
	ActiveUsers    int             `json:"active_users"`
	TotalUsers     int             `json:"total_users"`
	AveragePerUser float64         `json:"average_per_user"`
	CollectionRate float64         `json:"collection_rate"`
	SettlementRate float64         `json:"settlement_rate"`
	TopSpenders    []TopSpenderDTO `json:"top_spenders"`
	Daily          []DayBucketDTO  `json:"daily"`
	PeakDay        *DayBucketDTO   `json:"peak_day,omitempty"`
	ExpenseGrowth  float64         `json:"expense_growth"`
}

// ActivityDTO is one audit-trail entry.
type ActivityDTO struct {
	ID     string `json:"id"`
	At     string `json:"at"`
	Actor  string `json:"actor"`
	Role   string `json:"role"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to seed.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toExpenseDTO(e ledger.ExpenseRow) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		UserName:    e.UserName,
		Amount:      e.Amount.Round(2).InexactFloat64(),
		ExpenseDate: e.ExpenseDate.Format(dayFormat),
		Note:        e.Note,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toExpenseDTOs(rows []ledger.ExpenseRow) []ExpenseDTO {
	dtos := make([]ExpenseDTO, len(rows))
	for i, e := range rows {
		dtos[i] = toExpenseDTO(e)
	}
	return dtos
}

func toPaymentDTO(p ledger.PaymentRow) PaymentDTO {
	return PaymentDTO{
		ID:          p.ID,
		UserName:    p.UserName,
		Amount:      p.Amount.Round(2).InexactFloat64(),
		PaymentDate: p.PaymentDate.Format(dayFormat),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTOs(rows []ledger.PaymentRow) []PaymentDTO {
	dtos := make([]PaymentDTO, len(rows))
	for i, p := range rows {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toUserDTO(u ledger.UserRow) UserDTO {
	return UserDTO{
		ID:        u.ID,
		UserName:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toUserTotalDTO(t ledger.UserTotal) UserTotalDTO {
	return UserTotalDTO{
		UserName:         t.UserName,
		DisplayName:      t.DisplayName(),
		TotalAmount:      t.TotalAmount.Round(2).InexactFloat64(),
		TotalPaid:        t.TotalPaid.Round(2).InexactFloat64(),
		RemainingBalance: t.RemainingBalance.Round(2).InexactFloat64(),
		PaymentProgress:  t.PaymentProgress.InexactFloat64(),
		IsSettled:        t.IsSettled,
		Payments:         toPaymentDTOs(t.Payments),
	}
}

func toSummaryDTO(s ledger.Summary) SummaryDTO {
	dto := SummaryDTO{
		RangeStart:     s.Range.Start.Format(dayFormat),
		RangeEnd:       s.Range.End.Format(dayFormat),
		TotalExpenses:  s.TotalExpenses.Round(2).InexactFloat64(),
		TotalPayments:  s.TotalPayments.Round(2).InexactFloat64(),
		Outstanding:    s.Outstanding.Round(2).InexactFloat64(),
		ActiveUsers:    s.ActiveUsers,
		TotalUsers:     s.TotalUsers,
		AveragePerUser: s.AveragePerUser.InexactFloat64(),
		CollectionRate: s.CollectionRate.InexactFloat64(),
		SettlementRate: s.SettlementRate.InexactFloat64(),
		ExpenseGrowth:  s.ExpenseGrowth.InexactFloat64(),
	}

	dto.TopSpenders = make([]TopSpenderDTO, len(s.TopSpenders))
	for i, ts := range s.TopSpenders {
		dto.TopSpenders[i] = TopSpenderDTO{
			UserName:    ts.UserName,
			TotalAmount: ts.TotalAmount.Round(2).InexactFloat64(),
			TotalPaid:   ts.TotalPaid.Round(2).InexactFloat64(),
			Outstanding: ts.Outstanding.Round(2).InexactFloat64(),
		}
	}

	dto.Daily = make([]DayBucketDTO, len(s.Daily))
	for i, d := range s.Daily {
		dto.Daily[i] = toDayBucketDTO(d)
	}

	if s.PeakDay != nil {
		peak := toDayBucketDTO(*s.PeakDay)
		dto.PeakDay = &peak
	}

	return dto
}

func toDayBucketDTO(d ledger.DayBucket) DayBucketDTO {
	return DayBucketDTO{
		Date:     d.Date.Format(dayFormat),
		Expenses: d.Expenses.Round(2).InexactFloat64(),
		Payments: d.Payments.Round(2).InexactFloat64(),
	}
}

func toActivityDTO(e ledger.ActivityEntry) ActivityDTO {
	return ActivityDTO{
		ID:     e.ID,
		At:     e.At.Format(time.RFC3339),
		Actor:  e.Actor,
		Role:   string(e.Role),
		Action: e.Action,
		Detail: e.Detail,
	}
}
