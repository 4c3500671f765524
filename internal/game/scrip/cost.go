package scrip

import (
	"fmt"
	"sort"
	"strings"
)

// Kind represents one of the five scrip currencies. Each kind is issued by
// one of the five corp factions.
type Kind string

const (
	Corp1 Kind = "CORP1"
	Corp2 Kind = "CORP2"
	Corp3 Kind = "CORP3"
	Corp4 Kind = "CORP4"
	Corp5 Kind = "CORP5"
)

// Kinds lists the currencies in canonical order.
var Kinds = []Kind{Corp1, Corp2, Corp3, Corp4, Corp5}

// Cost represents a scrip cost: a non-negative amount per currency plus an
// Any component payable with scrip of any kind.
type Cost struct {
	Amounts map[Kind]int
	Any     int
}

// NewCost constructs a cost from per-kind amounts plus an Any component. The
// map is copied; the caller keeps ownership of its argument.
func NewCost(amounts map[Kind]int, anyAmount int) Cost {
	c := Cost{Amounts: make(map[Kind]int, len(amounts)), Any: anyAmount}
	for k, v := range amounts {
		if v > 0 {
			c.Amounts[k] = v
		}
	}
	return c
}

// Of returns the amount required of a specific kind.
func (c Cost) Of(kind Kind) int {
	if c.Amounts == nil {
		return 0
	}
	return c.Amounts[kind]
}

// Total returns the total scrip required across all components.
func (c Cost) Total() int {
	total := c.Any
	for _, kind := range Kinds {
		total += c.Of(kind)
	}
	return total
}

// IsFree reports whether the cost requires no scrip at all.
func (c Cost) IsFree() bool {
	return c.Total() == 0
}

// Copy returns an independent copy of the cost.
func (c Cost) Copy() Cost {
	out := NewCost(nil, c.Any)
	for k, v := range c.Amounts {
		out.Amounts[k] = v
	}
	return out
}

// Factions returns the set of corp kinds present in the cost, sorted in
// canonical order. An empty result means the card is factionless.
func (c Cost) Factions() []Kind {
	var out []Kind
	for _, kind := range Kinds {
		if c.Of(kind) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// Add returns the component-wise sum of two costs.
func (c Cost) Add(other Cost) Cost {
	out := c.Copy()
	out.Any += other.Any
	for _, kind := range Kinds {
		if amt := other.Of(kind); amt > 0 {
			out.Amounts[kind] += amt
		}
	}
	return out
}

// Subtract returns the component-wise difference, floored at zero per
// component. Costs never go negative.
func (c Cost) Subtract(other Cost) Cost {
	out := c.Copy()
	out.Any -= other.Any
	if out.Any < 0 {
		out.Any = 0
	}
	for _, kind := range Kinds {
		if amt := other.Of(kind); amt > 0 {
			out.Amounts[kind] -= amt
			if out.Amounts[kind] < 0 {
				out.Amounts[kind] = 0
			}
		}
	}
	return out
}

// String renders the cost as e.g. "2xCORP1 + 1 any".
func (c Cost) String() string {
	var parts []string
	for _, kind := range Kinds {
		if amt := c.Of(kind); amt > 0 {
			parts = append(parts, fmt.Sprintf("%dx%s", amt, kind))
		}
	}
	if c.Any > 0 {
		parts = append(parts, fmt.Sprintf("%d any", c.Any))
	}
	if len(parts) == 0 {
		return "free"
	}
	return strings.Join(parts, " + ")
}

// ParseKind converts a currency name to a Kind, case-insensitively.
func ParseKind(name string) (Kind, bool) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if kind == known {
			return kind, true
		}
	}
	return "", false
}

// SortKinds orders a slice of kinds canonically in place.
func SortKinds(kinds []Kind) {
	order := make(map[Kind]int, len(Kinds))
	for i, k := range Kinds {
		order[k] = i
	}
	sort.Slice(kinds, func(i, j int) bool { return order[kinds[i]] < order[kinds[j]] })
}
