package gaintable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiocodec-go/errcode"
)

func TestLookupDefault(t *testing.T) {
	tbl := MustDefault()
	cases := []struct {
		ohms uint32
		want int
	}{
		{0, 0}, {32, 0}, {42, 0}, {43, 4}, {100, 4}, {101, 8}, {150, 8}, {200, 8},
		{201, 12}, {450, 12}, {451, 14}, {600, 14}, {1000, 14}, {1001, 0}, {5000, 0}, {Unbounded, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tbl.Lookup(tc.ohms), "ohms=%d", tc.ohms)
	}
}

func TestLookupSharedBoundaryUsesLowerRange(t *testing.T) {
	tbl, err := Rebuild([]Range{
		{Min: 0, Max: 32, Step: 1},
		{Min: 32, Max: 64, Step: 2},
		{Min: 64, Max: Unbounded, Step: 3},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.Lookup(32))
	assert.Equal(t, 2, tbl.Lookup(33))
	assert.Equal(t, 2, tbl.Lookup(64))
	assert.Equal(t, 3, tbl.Lookup(65))
}

func TestRebuildShift(t *testing.T) {
	tbl, err := Rebuild(Default, 10)
	require.NoError(t, err)
	r := tbl.Ranges()

	assert.Equal(t, uint32(0), r[0].Min, "bottom min is never shifted")
	assert.Equal(t, uint32(52), r[0].Max)
	assert.Equal(t, uint32(53), r[1].Min)
	assert.Equal(t, uint32(Unbounded), r[len(r)-1].Max)

	assert.Equal(t, 0, tbl.Lookup(52))
	assert.Equal(t, 4, tbl.Lookup(53))
}

func TestLookupExtResistor(t *testing.T) {
	tbl, err := Rebuild(ExtResistor, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, tbl.Lookup(45))
	assert.Equal(t, 4, tbl.Lookup(46))
	assert.Equal(t, 14, tbl.Lookup(1000))
	assert.Equal(t, 0, tbl.Lookup(1001))
}

func TestRebuildShiftNearLimitNeverFails(t *testing.T) {
	entries := []Range{
		{Min: 0, Max: Unbounded - 5, Step: 1},
		{Min: Unbounded - 4, Max: Unbounded, Step: 2},
	}
	for _, shift := range []uint32{0, 1, 4, 5, 1 << 20, Unbounded - 1, Unbounded} {
		tbl, err := Rebuild(entries, shift)
		require.NoError(t, err)
		for _, r := range tbl.Ranges() {
			if r.Max != Unbounded {
				assert.Less(t, r.Max, uint32(Unbounded), "finite max must stay below the sentinel")
			}
		}
		for _, ohms := range []uint32{0, 1, Unbounded / 2, Unbounded - 5, Unbounded - 1, Unbounded} {
			assert.NotPanics(t, func() { tbl.Lookup(ohms) })
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string][]Range{
		"empty":         nil,
		"not from zero": {{Min: 1, Max: Unbounded}},
		"gap":           {{Min: 0, Max: 10}, {Min: 12, Max: Unbounded}},
		"overlap":       {{Min: 0, Max: 10}, {Min: 5, Max: Unbounded}},
		"bounded top":   {{Min: 0, Max: 10}, {Min: 11, Max: 20}},
		"inverted":      {{Min: 0, Max: 10}, {Min: 11, Max: 9}, {Min: 10, Max: Unbounded}},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Rebuild(entries, 0)
			assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
		})
	}
}

func TestNilTableLookup(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Lookup(50))
}
