package services

import "camsignal/internal/core/domain"

// TableAuthorizer allows a join only when the broadcaster's device id lists
// the viewer's device id. An empty table allows everything; a non-empty table
// denies receivers it does not mention.
type TableAuthorizer struct {
	allowed map[string]map[string]struct{}
}

func NewTableAuthorizer(table map[string][]string) *TableAuthorizer {
	allowed := make(map[string]map[string]struct{}, len(table))
	for receiver, callers := range table {
		set := make(map[string]struct{}, len(callers))
		for _, caller := range callers {
			set[caller] = struct{}{}
		}
		allowed[receiver] = set
	}
	return &TableAuthorizer{allowed: allowed}
}

func (a *TableAuthorizer) Enabled() bool {
	return len(a.allowed) > 0
}

func (a *TableAuthorizer) CanJoin(viewer, broadcaster *domain.Connection) bool {
	if !a.Enabled() {
		return true
	}
	callers, ok := a.allowed[broadcaster.DeviceID]
	if !ok {
		return false
	}
	_, ok = callers[viewer.DeviceID]
	return ok
}
