package auth

import (
	"slices"
	"strings"
)

// Resource is a part of the desk an API token can reach.
type Resource string

const (
	ResourceOrders   Resource = "orders"
	ResourceQueues   Resource = "queues"
	ResourceDispatch Resource = "dispatch"
	ResourceEvents   Resource = "events"
)

// Access is the level a scope grants on its resource.
type Access string

const (
	ReadOnly  Access = "ro"
	ReadWrite Access = "rw"
)

const (
	ScopeAll        = "*"
	ScopeOrdersRO   = "orders:ro"
	ScopeOrdersRW   = "orders:rw"
	ScopeQueuesRO   = "queues:ro"
	ScopeQueuesRW   = "queues:rw"
	ScopeDispatchRW = "dispatch:rw"
	ScopeEventsRO   = "events:ro"
)

// ScopeInfo describes one grantable scope.
type ScopeInfo struct {
	Name     string
	Resource Resource
	Access   Access
	Desc     string
	// Implies lists scopes granted along with this one.
	Implies []string
}

// Catalog lists every scope the API checks for, in display order.
var Catalog = []ScopeInfo{
	{Name: ScopeAll, Desc: "Full administrative access (all scopes)"},
	{Name: ScopeOrdersRO, Resource: ResourceOrders, Access: ReadOnly, Desc: "List and inspect orders"},
	{Name: ScopeOrdersRW, Resource: ResourceOrders, Access: ReadWrite, Desc: "Create and remove orders",
		Implies: []string{ScopeOrdersRO}},
	{Name: ScopeQueuesRO, Resource: ResourceQueues, Access: ReadOnly, Desc: "List queues, failures and dispatch runs"},
	{Name: ScopeQueuesRW, Resource: ResourceQueues, Access: ReadWrite, Desc: "Create, fill and remove queues; clear failures",
		Implies: []string{ScopeQueuesRO}},
	{Name: ScopeDispatchRW, Resource: ResourceDispatch, Access: ReadWrite, Desc: "Send a queue's orders to the venue",
		Implies: []string{ScopeQueuesRO}},
	{Name: ScopeEventsRO, Resource: ResourceEvents, Access: ReadOnly, Desc: "Subscribe to the live event stream (SSE)"},
}

// LookupScope returns the catalog entry for name.
func LookupScope(name string) (ScopeInfo, bool) {
	name = strings.TrimSpace(name)
	i := slices.IndexFunc(Catalog, func(s ScopeInfo) bool { return s.Name == name })
	if i < 0 {
		return ScopeInfo{}, false
	}
	return Catalog[i], true
}

// KnownScope reports whether s is a scope the API checks for.
func KnownScope(s string) bool {
	_, ok := LookupScope(s)
	return ok
}

// ScopeFor names the scope granting access on res, or "" if the catalog has none.
func ScopeFor(res Resource, access Access) string {
	for _, s := range Catalog {
		if s.Resource == res && s.Access == access {
			return s.Name
		}
	}
	return ""
}

// Expand returns scopes plus everything they imply, trimmed, deduplicated and
// sorted. Unknown scopes are kept as given.
func Expand(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	var walk func(string)
	walk = func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		if info, ok := LookupScope(s); ok {
			for _, implied := range info.Implies {
				walk(implied)
			}
		}
	}
	for _, s := range scopes {
		walk(s)
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
