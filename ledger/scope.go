/*
scope.go - Role-based row visibility and action permissions

PURPOSE:
  The single source of truth for what each role may see and do. Every
  authorization check in the system - query scoping and action gating
  alike - reduces to a lookup here. The HTTP layer enforces this table
  server-side regardless of what any frontend hides.

RULE TABLE:
  role     rows  expense payment reports users activity backup
  admin    all   yes     yes     yes     yes   yes      yes
  hr       all   no      no      yes     no    no       no
  canteen  all   yes     yes     no      no    no       no
  user     own   no      no      no*     no    no       no
  (* users see their own payment history, not reports)

FAILURE SEMANTICS:
  A denied action surfaces ErrAccessDenied / HTTP 403. It must never
  silently no-op or partially apply.
*/
package ledger

// QueryScope restricts which rows a fetch may return. Either all rows
// (staff roles) or a single user's rows.
type QueryScope struct {
	All      bool
	UserName string
}

// ScopeFor returns the row visibility for a role. Staff roles (admin,
// hr, canteen) see everything; the user role sees only its own rows.
func ScopeFor(role Role, ownUsername string) QueryScope {
	if role == RoleUser {
		return QueryScope{UserName: ownUsername}
	}
	return QueryScope{All: true}
}

// Scope is a convenience for deriving the visibility of an actor.
func (a ActorContext) Scope() QueryScope {
	return ScopeFor(a.Role, a.Username)
}

// =============================================================================
// ACTION PERMISSIONS
// =============================================================================

type Permission string

const (
	PermAddExpense   Permission = "add_expense"
	PermAddPayment   Permission = "add_payment"
	PermViewReports  Permission = "view_reports"
	PermManageUsers  Permission = "manage_users"
	PermViewActivity Permission = "view_activity"
	PermBackup       Permission = "backup"
)

// permissions is the rule table. Absent entries mean denied.
var permissions = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermAddExpense:   true,
		PermAddPayment:   true,
		PermViewReports:  true,
		PermManageUsers:  true,
		PermViewActivity: true,
		PermBackup:       true,
	},
	RoleHR: {
		PermViewReports: true,
	},
	RoleCanteen: {
		PermAddExpense: true,
		PermAddPayment: true,
	},
	RoleUser: {},
}

// Allowed reports whether the role may perform the action.
func Allowed(role Role, p Permission) bool {
	return permissions[role][p]
}

// Can reports whether the actor may perform the action.
func (a ActorContext) Can(p Permission) bool {
	return Allowed(a.Role, p)
}
