// Package roles defines the closed set of capability labels a principal can
// hold and the rules for picking the one the user is currently wearing.
package roles

import (
	"fmt"
	"strings"
)

// Role is one of the fixed capability labels assignable to a principal.
type Role string

const (
	Tenant   Role = "tenant"
	Landlord Role = "landlord"
	Agent    Role = "agent"
	Admin    Role = "admin"
	Manager  Role = "manager"
	Vendor   Role = "vendor"
	Mod      Role = "mod"
)

// Default is the role worn when nothing else applies. New accounts are
// granted it at registration.
const Default = Tenant

// All lists every valid role in declaration order.
var All = []Role{Tenant, Landlord, Agent, Admin, Manager, Vendor, Mod}

// priority ranks roles from most to least privileged. Lower wins.
var priority = map[Role]int{
	Admin:    0,
	Manager:  1,
	Agent:    2,
	Landlord: 3,
	Vendor:   4,
	Mod:      5,
	Tenant:   6,
}

// IsValid reports whether r is a member of the closed role set.
func IsValid(r Role) bool {
	_, ok := priority[r]
	return ok
}

// Parse normalizes s and returns the matching role.
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !IsValid(r) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Sanitize drops invalid and duplicate entries, preserving the order of
// first appearance.
func Sanitize(in []Role) []Role {
	out := make([]Role, 0, len(in))
	seen := make(map[Role]struct{}, len(in))
	for _, r := range in {
		if !IsValid(r) {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Contains reports whether r appears in set.
func Contains(set []Role, r Role) bool {
	for _, candidate := range set {
		if candidate == r {
			return true
		}
	}
	return false
}

// TieBreak picks the active role when the persisted selection is not among
// the assigned roles.
type TieBreak int

const (
	// FetchOrder keeps the first role in the order the backend returned them.
	FetchOrder TieBreak = iota
	// Priority picks the most privileged assigned role.
	Priority
)

// Resolve returns the role the user should be wearing. A persisted choice
// that is still assigned wins. Otherwise the tie-break picks from assigned,
// and an empty assignment falls back to Default. Entries outside the closed
// set are ignored, so the result is always a valid role.
func Resolve(persisted Role, assigned []Role, tb TieBreak) Role {
	assigned = Sanitize(assigned)
	if len(assigned) == 0 {
		return Default
	}
	if IsValid(persisted) && Contains(assigned, persisted) {
		return persisted
	}
	if tb == Priority {
		return Highest(assigned)
	}
	return assigned[0]
}

// Highest returns the most privileged role in set, or Default when set is empty.
func Highest(set []Role) Role {
	best := Default
	bestRank := len(priority)
	for _, r := range set {
		rank, ok := priority[r]
		if ok && rank < bestRank {
			best, bestRank = r, rank
		}
	}
	return best
}

// Strings converts a role slice for wire or storage use.
func Strings(set []Role) []string {
	out := make([]string, len(set))
	for i, r := range set {
		out[i] = string(r)
	}
	return out
}

// FromStrings converts raw values, dropping anything outside the closed set.
func FromStrings(values []string) []Role {
	raw := make([]Role, len(values))
	for i, v := range values {
		raw[i] = Role(strings.ToLower(strings.TrimSpace(v)))
	}
	return Sanitize(raw)
}
