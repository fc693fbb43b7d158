package domain

import "fmt"

// Scope selects which metric categories a collection pass fetches.
type Scope int

const (
	ScopeBoth Scope = iota
	ScopeSendsOpens
	ScopeLeads
)

// IncludesSendsOpens reports whether sends, unique opens and replies are fetched.
func (s Scope) IncludesSendsOpens() bool { return s == ScopeBoth || s == ScopeSendsOpens }

// IncludesLeads reports whether lead status counts are fetched.
func (s Scope) IncludesLeads() bool { return s == ScopeBoth || s == ScopeLeads }

func (s Scope) String() string {
	switch s {
	case ScopeSendsOpens:
		return "sends-opens"
	case ScopeLeads:
		return "leads"
	default:
		return "both"
	}
}

// ParseScope maps the names used on the wire and in config to a Scope.
func ParseScope(name string) (Scope, error) {
	switch name {
	case "", "both", "all":
		return ScopeBoth, nil
	case "sends-opens", "sends_opens":
		return ScopeSendsOpens, nil
	case "leads":
		return ScopeLeads, nil
	}
	return ScopeBoth, fmt.Errorf("unknown collection scope %q", name)
}
