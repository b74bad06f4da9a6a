package ringtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ssn(s string) [12]byte {
	var b [12]byte
	copy(b[:], s)
	return b
}

func TestInsertLookupRemove(t *testing.T) {
	tbl := New(0, 255)
	rec := Record{SSN: ssn("aaaaabbbbbcc"), Name: "Rolf", Email: "rolf@x"}

	require.NoError(t, tbl.Insert(rec, 10))

	got, found, err := tbl.Lookup(rec.SSN, 10)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)

	require.NoError(t, tbl.Remove(rec.SSN, 10))
	_, found, err = tbl.Lookup(rec.SSN, 10)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInsertOutOfRange(t *testing.T) {
	tbl := New(0, 127)
	rec := Record{SSN: ssn("aaaaabbbbbcc")}
	err := tbl.Insert(rec, 200)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestRemoveMissingIsNotError(t *testing.T) {
	tbl := New(0, 255)
	err := tbl.Remove(ssn("doesnotexist"), 5)
	require.NoError(t, err)
}

func TestRemoveOutOfRangeIsError(t *testing.T) {
	tbl := New(0, 127)
	err := tbl.Remove(ssn("aaaaabbbbbcc"), 200)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestNoDedup(t *testing.T) {
	tbl := New(0, 255)
	rec := Record{SSN: ssn("aaaaabbbbbcc"), Name: "A"}
	require.NoError(t, tbl.Insert(rec, 10))
	require.NoError(t, tbl.Insert(rec, 10))

	all := tbl.BucketsFrom(0)
	assert.Len(t, all, 2)
}

func TestBucketsFrom(t *testing.T) {
	tbl := New(0, 255)
	low := Record{SSN: ssn("low000000001"), Name: "Low"}
	high := Record{SSN: ssn("high00000001"), Name: "High"}
	require.NoError(t, tbl.Insert(low, 50))
	require.NoError(t, tbl.Insert(high, 200))

	upper := tbl.BucketsFrom(128)
	assert.Equal(t, []Record{high}, upper)

	everything := tbl.BucketsFrom(0)
	assert.ElementsMatch(t, []Record{low, high}, everything)
}

// TestResizeProjection checks invariant 4: records in resize(t,a,b) equal
// records in t whose hash lies in [a,b] ∩ [t.min,t.max].
func TestResizeProjection(t *testing.T) {
	tbl := New(0, 255)
	recs := map[uint8]Record{
		10:  {SSN: ssn("r1__________"), Name: "r10"},
		100: {SSN: ssn("r2__________"), Name: "r100"},
		200: {SSN: ssn("r3__________"), Name: "r200"},
	}
	for h, r := range recs {
		require.NoError(t, tbl.Insert(r, h))
	}

	tbl.Resize(0, 127)

	assert.Equal(t, uint8(0), tbl.Min())
	assert.Equal(t, uint8(127), tbl.Max())

	kept := tbl.BucketsFrom(0)
	assert.ElementsMatch(t, []Record{recs[10], recs[100]}, kept)

	_, _, err := tbl.Lookup(recs[200].SSN, 200)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestSpan(t *testing.T) {
	assert.Equal(t, 256, New(0, 255).Span())
	assert.Equal(t, 128, New(0, 127).Span())
	assert.Equal(t, 1, New(200, 200).Span())
}
