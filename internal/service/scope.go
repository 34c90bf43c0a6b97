package service

import "github.com/medscan/scangate/internal/model"

// Scope is the row-visibility decision for a query, resolved from the caller
// before any SQL is assembled so the access-control rule is testable on its
// own.
type Scope struct {
	// UserID pins the query to one submitter; nil means all users.
	UserID *int64
	// IncludeDeleted exposes undone records. Only self-scope queries may set
	// it; admins browsing another user's records never see undone entries.
	IncludeDeleted bool
}

// BuildScope resolves (caller role, caller id, requested user_id, raw
// include_deleted flag) into a Scope. A plain "user" with no explicit user_id
// filter is restricted to their own records. An explicit user_id is honored
// for any role; whether a plain user should be able to read another user's
// records that way is an open product question, so the current behavior is
// kept.
func BuildScope(caller *model.User, requestedUserID *int64, includeDeleted bool) Scope {
	s := Scope{IncludeDeleted: includeDeleted && requestedUserID == nil}
	switch {
	case requestedUserID != nil:
		uid := *requestedUserID
		s.UserID = &uid
	case caller.Role == model.RoleUser:
		uid := caller.ID
		s.UserID = &uid
	}
	return s
}

// Apply merges the scope into a filter, overriding whatever the caller put in
// the user/deleted fields.
func (s Scope) Apply(f model.UsageFilter) model.UsageFilter {
	f.UserID = s.UserID
	f.IncludeDeleted = s.IncludeDeleted
	return f
}
