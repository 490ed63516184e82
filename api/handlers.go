/*
handlers.go - HTTP API handlers for the canteen ledger

PURPOSE:
  Exposes the balance reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Balances:
    GET    /api/totals                 Per-user totals (scoped to actor)

  Records:
    GET    /api/expenses               List expenses (scoped, optional range)
    POST   /api/expenses               Record expense (admin, canteen)
    GET    /api/payments               List payments (scoped, optional range)
    POST   /api/payments               Record payment (admin, canteen)

  Directory:
    GET    /api/users                  List users (staff roles)
    POST   /api/users                  Create user (admin)

  Reports:
    GET    /api/summary                Period summary (admin, hr)
    GET    /api/exports/expenses.csv   Expense export (scoped)
    GET    /api/exports/payments.csv   Payment export (scoped)
    GET    /api/exports/summary.csv    Balance summary export (admin, hr)

  Accounts:
    GET    /api/profiles/me            Actor's own profile
    POST   /api/profiles/signup        Register a profile

  Admin:
    GET    /api/activity               Activity log (admin)

REQUEST FLOW:
  1. Resolve actor (middleware), check permission
  2. Parse and validate input
  3. Call domain logic (ledger package)
  4. Record activity on successful writes
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (field named where known)
  - 401: Unresolvable actor
  - 403: Role lacks permission
  - 404: Resource not found
  - 409: Duplicate user or profile
  - 503: Record store unavailable after retries
  - 500: Everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - actor.go: Actor middleware and authorization
  - backup.go: Snapshot, restore, and the backup scheduler
  - scenarios.go: Demo scenario loaders
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealdesk/canteen-ledger/export"
	"github.com/mealdesk/canteen-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  ledger.Store
	Logger *zap.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store ledger.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Logger: logger}
}

// =============================================================================
// BALANCES
// =============================================================================

// GetTotals returns per-user totals, scoped to the actor's visibility.
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	scope := actor.Scope()

	expenses, err := h.Store.FetchExpenses(r.Context(), scope)
	if err != nil {
		writeStoreError(w, "failed to fetch expenses", err)
		return
	}
	payments, err := h.Store.FetchPayments(r.Context(), scope)
	if err != nil {
		writeStoreError(w, "failed to fetch payments", err)
		return
	}
	users, err := h.Store.FetchUsers(r.Context(), scope)
	if err != nil {
		writeStoreError(w, "failed to fetch users", err)
		return
	}

	totals := ledger.ComputeUserTotals(expenses, payments, users, h.Logger)

	dtos := make([]UserTotalDTO, len(totals))
	for i, t := range totals {
		dtos[i] = toUserTotalDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EXPENSES
// =============================================================================

// ListExpenses returns expense rows visible to the actor, optionally
// restricted to a reporting range.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	expenses, err := h.Store.FetchExpenses(r.Context(), actor.Scope())
	if err != nil {
		writeStoreError(w, "failed to fetch expenses", err)
		return
	}

	if dr, ok := rangeFromQuery(r); ok {
		expenses = filterExpensesByRange(expenses, dr)
	}

	writeJSON(w, http.StatusOK, toExpenseDTOs(expenses))
}

// CreateExpense records a new expense row.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermAddExpense)
	if !ok {
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" {
		writeFieldError(w, "user_name", "user name is required")
		return
	}

	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		writeValidation(w, err)
		return
	}

	expenseDate, err := parseDay(req.ExpenseDate)
	if err != nil {
		writeFieldError(w, "expense_date", "date must be YYYY-MM-DD")
		return
	}

	known, err := h.userExists(r, req.UserName)
	if err != nil {
		writeStoreError(w, "failed to check user", err)
		return
	}
	if !known {
		writeFieldError(w, "user_name", "no such user: "+req.UserName)
		return
	}

	row := ledger.ExpenseRow{
		ID:          uuid.NewString(),
		UserName:    req.UserName,
		Amount:      amount,
		ExpenseDate: expenseDate,
		Note:        req.Note,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.AddExpense(r.Context(), row); err != nil {
		writeStoreError(w, "failed to record expense", err)
		return
	}

	h.recordActivity(r, actor, "add_expense", req.UserName+" "+amount.StringFixed(2))
	writeJSON(w, http.StatusCreated, toExpenseDTO(row))
}

// =============================================================================
// PAYMENTS
// =============================================================================

// ListPayments returns payment rows visible to the actor.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	payments, err := h.Store.FetchPayments(r.Context(), actor.Scope())
	if err != nil {
		writeStoreError(w, "failed to fetch payments", err)
		return
	}

	if dr, ok := rangeFromQuery(r); ok {
		payments = filterPaymentsByRange(payments, dr)
	}

	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// CreatePayment records a new payment row.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermAddPayment)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" {
		writeFieldError(w, "user_name", "user name is required")
		return
	}

	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		writeValidation(w, err)
		return
	}

	paymentDate, err := parseDay(req.PaymentDate)
	if err != nil {
		writeFieldError(w, "payment_date", "date must be YYYY-MM-DD")
		return
	}

	known, err := h.userExists(r, req.UserName)
	if err != nil {
		writeStoreError(w, "failed to check user", err)
		return
	}
	if !known {
		writeFieldError(w, "user_name", "no such user: "+req.UserName)
		return
	}

	row := ledger.PaymentRow{
		ID:          uuid.NewString(),
		UserName:    req.UserName,
		Amount:      amount,
		PaymentDate: paymentDate,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.AddPayment(r.Context(), row); err != nil {
		writeStoreError(w, "failed to record payment", err)
		return
	}

	h.recordActivity(r, actor, "add_payment", req.UserName+" "+amount.StringFixed(2))
	writeJSON(w, http.StatusCreated, toPaymentDTO(row))
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

// ListUsers returns directory entries. Staff roles only; the user role
// has no reason to browse the directory.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.Role == ledger.RoleUser {
		writeError(w, http.StatusForbidden, "access denied", ledger.ErrAccessDenied)
		return
	}

	users, err := h.Store.FetchUsers(r.Context(), ledger.QueryScope{All: true})
	if err != nil {
		writeStoreError(w, "failed to fetch users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates a directory entry.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, ledger.PermManageUsers)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" {
		writeFieldError(w, "user_name", "user name is required")
		return
	}

	row := ledger.UserRow{
		ID:        uuid.NewString(),
		UserName:  req.UserName,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.AddUser(r.Context(), row); err != nil {
		if errors.Is(err, ledger.ErrUserExists) {
			writeError(w, http.StatusConflict, "user name already taken", err)
			return
		}
		writeStoreError(w, "failed to create user", err)
		return
	}

	h.recordActivity(r, actor, "create_user", req.UserName)
	writeJSON(w, http.StatusCreated, toUserDTO(row))
}

// =============================================================================
// REPORTS
// =============================================================================

// GetSummary returns the period rollup for reports and dashboards.
// Query params: range (today|this-week|this-month|this-year|custom),
// from/to (YYYY-MM-DD, custom only), top (top-spender count).
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r, ledger.PermViewReports)
	if !ok {
		return
	}

	all := ledger.QueryScope{All: true}
	expenses, err := h.Store.FetchExpenses(r.Context(), all)
	if err != nil {
		writeStoreError(w, "failed to fetch expenses", err)
		return
	}
	payments, err := h.Store.FetchPayments(r.Context(), all)
	if err != nil {
		writeStoreError(w, "failed to fetch payments", err)
		return
	}
	users, err := h.Store.FetchUsers(r.Context(), all)
	if err != nil {
		writeStoreError(w, "failed to fetch users", err)
		return
	}

	dr := resolveRangeQuery(r)
	topN, _ := strconv.Atoi(r.URL.Query().Get("top"))

	summary := ledger.ComputeSummary(expenses, payments, users, dr, topN, h.Logger)
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// EXPORTS
// =============================================================================

// ExportExpensesCSV streams the actor-visible expenses as CSV.
func (h *Handler) ExportExpensesCSV(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	expenses, err := h.Store.FetchExpenses(r.Context(), actor.Scope())
	if err != nil {
		writeStoreError(w, "failed to fetch expenses", err)
		return
	}
	if dr, ok := rangeFromQuery(r); ok {
		expenses = filterExpensesByRange(expenses, dr)
	}

	selfOnly := actor.Role == ledger.RoleUser
	setCSVHeaders(w, "expenses.csv")
	if err := export.ExpenseCSV(w, expenses, selfOnly); err != nil {
		h.Logger.Error("expense export failed", zap.Error(err))
	}
}

// ExportPaymentsCSV streams the actor-visible payments as CSV.
func (h *Handler) ExportPaymentsCSV(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	payments, err := h.Store.FetchPayments(r.Context(), actor.Scope())
	if err != nil {
		writeStoreError(w, "failed to fetch payments", err)
		return
	}
	if dr, ok := rangeFromQuery(r); ok {
		payments = filterPaymentsByRange(payments, dr)
	}

	selfOnly := actor.Role == ledger.RoleUser
	setCSVHeaders(w, "payments.csv")
	if err := export.PaymentCSV(w, payments, selfOnly); err != nil {
		h.Logger.Error("payment export failed", zap.Error(err))
	}
}

// ExportSummaryCSV streams the per-user balance summary as CSV.
func (h *Handler) ExportSummaryCSV(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r, ledger.PermViewReports)
	if !ok {
		return
	}

	all := ledger.QueryScope{All: true}
	expenses, err := h.Store.FetchExpenses(r.Context(), all)
	if err != nil {
		writeStoreError(w, "failed to fetch expenses", err)
		return
	}
	payments, err := h.Store.FetchPayments(r.Context(), all)
	if err != nil {
		writeStoreError(w, "failed to fetch payments", err)
		return
	}
	users, err := h.Store.FetchUsers(r.Context(), all)
	if err != nil {
		writeStoreError(w, "failed to fetch users", err)
		return
	}

	totals := ledger.ComputeUserTotals(expenses, payments, users, h.Logger)
	setCSVHeaders(w, "summary.csv")
	if err := export.SummaryCSV(w, totals); err != nil {
		h.Logger.Error("summary export failed", zap.Error(err))
	}
}

// =============================================================================
// PROFILES
// =============================================================================

// GetMyProfile returns the actor's own profile.
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	profile, err := h.Store.FetchProfile(r.Context(), actor.Username)
	if err != nil {
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "profile not found", err)
			return
		}
		writeStoreError(w, "failed to fetch profile", err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileDTO{
		ID:        profile.ID,
		Username:  profile.Username,
		Role:      string(profile.Role),
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	})
}

// Signup registers a profile for an existing directory user. This route
// is mounted outside the actor middleware; a new account has no profile
// to resolve yet.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeFieldError(w, "username", "username is required")
		return
	}

	role := ledger.Role(req.Role)
	if !ledger.ValidRole(role) {
		writeFieldError(w, "role", "role must be admin, hr, canteen, or user")
		return
	}

	profile := ledger.Profile{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Role:      role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveProfile(r.Context(), profile); err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnknownUser):
			writeFieldError(w, "username", "no directory entry for "+req.Username)
		case errors.Is(err, ledger.ErrProfileExists):
			writeError(w, http.StatusConflict, "profile already registered", err)
		default:
			writeStoreError(w, "failed to save profile", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, ProfileDTO{
		ID:        profile.ID,
		Username:  profile.Username,
		Role:      string(profile.Role),
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	})
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// ListActivity returns the audit trail, newest first.
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r, ledger.PermViewActivity)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Store.FetchActivity(r.Context(), limit)
	if err != nil {
		writeStoreError(w, "failed to fetch activity", err)
		return
	}

	dtos := make([]ActivityDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toActivityDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// recordActivity appends an audit entry after a successful write. A
// failure to record is logged, never surfaced; the write itself stands.
func (h *Handler) recordActivity(r *http.Request, actor ledger.ActorContext, action, detail string) {
	entry := ledger.ActivityEntry{
		ID:     uuid.NewString(),
		At:     time.Now().UTC(),
		Actor:  actor.Username,
		Role:   actor.Role,
		Action: action,
		Detail: detail,
	}
	if err := h.Store.RecordActivity(r.Context(), entry); err != nil {
		h.Logger.Warn("failed to record activity",
			zap.String("action", action),
			zap.Error(err))
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func parseDay(s string) (time.Time, error) {
	return time.Parse(dayFormat, strings.TrimSpace(s))
}

// userExists checks the directory for an exact user name match.
func (h *Handler) userExists(r *http.Request, userName string) (bool, error) {
	users, err := h.Store.FetchUsers(r.Context(), ledger.QueryScope{UserName: userName})
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// rangeFromQuery parses an optional reporting range. Returns false when
// the request carries no range parameters at all.
func rangeFromQuery(r *http.Request) (ledger.DateRange, bool) {
	q := r.URL.Query()
	if q.Get("range") == "" && q.Get("from") == "" && q.Get("to") == "" {
		return ledger.DateRange{}, false
	}
	return resolveRangeQuery(r), true
}

// resolveRangeQuery turns range/from/to query params into concrete
// bounds, defaulting to the current month.
func resolveRangeQuery(r *http.Request) ledger.DateRange {
	q := r.URL.Query()
	kind := ledger.RangeKind(q.Get("range"))

	var from, to *time.Time
	if t, err := parseDay(q.Get("from")); err == nil && q.Get("from") != "" {
		from = &t
	}
	if t, err := parseDay(q.Get("to")); err == nil && q.Get("to") != "" {
		to = &t
	}
	if kind == "" && (from != nil || to != nil) {
		kind = ledger.RangeCustom
	}

	return ledger.ResolveDateRange(kind, time.Now().UTC(), from, to)
}

func filterExpensesByRange(rows []ledger.ExpenseRow, dr ledger.DateRange) []ledger.ExpenseRow {
	out := make([]ledger.ExpenseRow, 0, len(rows))
	for _, e := range rows {
		if dr.Contains(e.ExpenseDate) {
			out = append(out, e)
		}
	}
	return out
}

func filterPaymentsByRange(rows []ledger.PaymentRow, dr ledger.DateRange) []ledger.PaymentRow {
	out := make([]ledger.PaymentRow, 0, len(rows))
	for _, p := range rows {
		if dr.Contains(p.PaymentDate) {
			out = append(out, p)
		}
	}
	return out
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeFieldError writes a 400 naming the offending field.
func writeFieldError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Field: field})
}

// writeValidation maps a validation error to a 400, preserving the field
// name when the error carries one.
func writeValidation(w http.ResponseWriter, err error) {
	var fe *ledger.FieldError
	if errors.As(err, &fe) {
		writeFieldError(w, fe.Field, fe.Message)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), err)
}

// writeStoreError distinguishes exhausted-retry store failures (503,
// clients keep their last-known-good view) from everything else (500).
func writeStoreError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, ledger.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, message, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}
