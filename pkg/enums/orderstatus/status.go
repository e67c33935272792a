package orderstatus

import (
	"strings"
)

// Status is one step of the fixed order pipeline. Rank gives the pipeline
// its ordering: transitions must strictly increase it.
type Status struct {
	Name string
	Rank int
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// Terminal reports whether the status releases the table: a table whose
// orders are all terminal is free to start a fresh order.
func (s Status) Terminal() bool {
	return s.Rank >= Statuses.Served.Rank
}

type Enum struct {
	Preparing Status
	Cooking   Status
	Ready     Status
	Served    Status
}

var Statuses = Enum{
	Preparing: Status{Name: "preparing", Rank: 1},
	Cooking:   Status{Name: "cooking", Rank: 2},
	Ready:     Status{Name: "ready", Rank: 3},
	Served:    Status{Name: "served", Rank: 4},
}

var All = []Status{
	Statuses.Preparing,
	Statuses.Cooking,
	Statuses.Ready,
	Statuses.Served,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// IsTerminal reports whether a status code names a terminal status.
// Unknown codes are not terminal.
func IsTerminal(name string) bool {
	s := ByName(name)
	return s != nil && s.Terminal()
}

// CanAdvance reports whether a transition from one status code to another is
// a forward move in the pipeline. Skipping steps forward is allowed,
// regressions and unknown codes are not.
func CanAdvance(from, to string) bool {
	f := ByName(from)
	t := ByName(to)
	if f == nil || t == nil {
		return false
	}
	return t.Rank > f.Rank
}
