// Package gaintable maps a measured headphone load to a gain correction step.
package gaintable

import (
	"math"

	"audiocodec-go/errcode"
)

// Unbounded is the sentinel max of the top range.
const Unbounded = math.MaxUint32

// Range covers [Min, Max] ohms inclusive.
type Range struct {
	Min  uint32 `json:"min"`
	Max  uint32 `json:"max"`
	Step int    `json:"gain"`
}

// Table is immutable once built; replace it whole.
type Table struct {
	ranges []Range
}

// Default is the stock load table used when configuration supplies none.
// Loads above 1k ohm are line inputs and take no correction.
var Default = []Range{
	{Min: 0, Max: 42, Step: 0},
	{Min: 43, Max: 100, Step: 4},
	{Min: 101, Max: 200, Step: 8},
	{Min: 201, Max: 450, Step: 12},
	{Min: 451, Max: 1000, Step: 14},
	{Min: 1001, Max: Unbounded, Step: 0},
}

// ExtResistor is the table for boards with a series resistor on the
// headphone path, which raises the lowest band.
var ExtResistor = []Range{
	{Min: 0, Max: 45, Step: 0},
	{Min: 46, Max: 100, Step: 4},
	{Min: 101, Max: 200, Step: 8},
	{Min: 201, Max: 450, Step: 12},
	{Min: 451, Max: 1000, Step: 14},
	{Min: 1001, Max: Unbounded, Step: 0},
}

// Validate checks ordering, contiguity and exhaustiveness. A range may start
// at the previous max (shared boundary) or right after it.
func Validate(entries []Range) error {
	if len(entries) == 0 {
		return errcode.New(errcode.InvalidParams, "gaintable", "empty table")
	}
	if entries[0].Min != 0 {
		return errcode.New(errcode.InvalidParams, "gaintable", "first range must start at 0")
	}
	for i, r := range entries {
		if r.Min > r.Max {
			return errcode.New(errcode.InvalidParams, "gaintable", "min above max")
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if prev.Max == Unbounded {
			return errcode.New(errcode.InvalidParams, "gaintable", "range after unbounded top")
		}
		if r.Min != prev.Max && r.Min != prev.Max+1 {
			return errcode.New(errcode.InvalidParams, "gaintable", "ranges not contiguous")
		}
	}
	if entries[len(entries)-1].Max != Unbounded {
		return errcode.New(errcode.InvalidParams, "gaintable", "top range must be unbounded")
	}
	return nil
}

// Rebuild validates entries and returns a new table with every finite bound
// moved up by shift. A min of zero stays zero and finite bounds clamp just
// below Unbounded.
func Rebuild(entries []Range, shift uint32) (*Table, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}
	out := make([]Range, len(entries))
	for i, r := range entries {
		if r.Min != 0 {
			r.Min = addClamped(r.Min, shift)
		}
		if r.Max != Unbounded {
			r.Max = addClamped(r.Max, shift)
		}
		out[i] = r
	}
	return &Table{ranges: out}, nil
}

// MustDefault builds the stock table.
func MustDefault() *Table {
	t, err := Rebuild(Default, 0)
	if err != nil {
		panic(err)
	}
	return t
}

func addClamped(v, shift uint32) uint32 {
	if v >= Unbounded-1 || shift > Unbounded-1-v {
		return Unbounded - 1
	}
	return v + shift
}

// Lookup returns the step of the first range containing ohms. The table is
// exhaustive so a step is always found; the last step is returned if clamping
// left a gap at the very top.
func (t *Table) Lookup(ohms uint32) int {
	if t == nil || len(t.ranges) == 0 {
		return 0
	}
	for _, r := range t.ranges {
		if ohms >= r.Min && ohms <= r.Max {
			return r.Step
		}
	}
	return t.ranges[len(t.ranges)-1].Step
}

// Ranges returns a copy of the table.
func (t *Table) Ranges() []Range {
	if t == nil {
		return nil
	}
	return append([]Range(nil), t.ranges...)
}
