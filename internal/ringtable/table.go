// Package ringtable implements the per-node record store: a table bucketed
// by hash value, owning a contiguous sub-range of the 8-bit hash space.
package ringtable

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned by Insert/Remove/Lookup when a record's hash
// falls outside the table's currently owned [Min, Max] range. The ring
// protocol's normal response to this is to forward the frame on, not to
// treat it as a failure.
var ErrOutOfRange = errors.New("ringtable: hash outside owned range")

// Record is a single stored value: an opaque 12-byte SSN plus a name and
// email, exactly as carried on the wire.
type Record struct {
	SSN   [12]byte
	Name  string
	Email string
}

// Table owns every record whose hash lies in [Min, Max]. Buckets are
// indexed directly by hash value (0..255); only the buckets inside
// [Min, Max] are ever populated.
type Table struct {
	min, max uint8
	buckets  [256][]Record
}

// New creates an empty table owning [min, max].
func New(min, max uint8) *Table {
	return &Table{min: min, max: max}
}

// Min returns the low end of the owned range.
func (t *Table) Min() uint8 { return t.min }

// Max returns the high end of the owned range.
func (t *Table) Max() uint8 { return t.max }

// Span returns the number of hash values this table owns.
func (t *Table) Span() int { return int(t.max) - int(t.min) + 1 }

func (t *Table) inRange(hash uint8) bool {
	return hash >= t.min && hash <= t.max
}

// Insert adds a record under hash, which the caller computes from rec.SSN
// (see internal/sshash). It does not deduplicate:
// inserting the same SSN twice appends a second copy, matching the
// append-only semantics of the system this table implements.
func (t *Table) Insert(rec Record, hash uint8) error {
	if !t.inRange(hash) {
		return fmt.Errorf("insert hash %d: %w", hash, ErrOutOfRange)
	}
	t.buckets[hash] = append(t.buckets[hash], rec)
	return nil
}

// Remove deletes the first record in the bucket matching ssn, if any. A
// missing record is not an error; only an out-of-range hash is.
func (t *Table) Remove(ssn [12]byte, hash uint8) error {
	if !t.inRange(hash) {
		return fmt.Errorf("remove hash %d: %w", hash, ErrOutOfRange)
	}
	bucket := t.buckets[hash]
	for i, rec := range bucket {
		if rec.SSN == ssn {
			t.buckets[hash] = append(bucket[:i], bucket[i+1:]...)
			return nil
		}
	}
	return nil
}

// Lookup finds the first record matching ssn. The bool return reports
// whether a record was found; an out-of-range hash is reported as an error,
// distinct from a clean not-found result.
func (t *Table) Lookup(ssn [12]byte, hash uint8) (Record, bool, error) {
	if !t.inRange(hash) {
		return Record{}, false, fmt.Errorf("lookup hash %d: %w", hash, ErrOutOfRange)
	}
	for _, rec := range t.buckets[hash] {
		if rec.SSN == ssn {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// BucketsFrom returns every record whose hash is >= from, up to and
// including the table's current Max. It is the primitive a split/join
// handler uses to peel off the upper half of the owned range before
// handing it to a neighbor.
func (t *Table) BucketsFrom(from uint8) []Record {
	var out []Record
	hi := int(t.max)
	for h := int(from); h <= hi; h++ {
		out = append(out, t.buckets[h]...)
	}
	return out
}

// Resize rebuilds the table to own [newMin, newMax]. Records whose hash
// falls inside the intersection of the old and new ranges are carried
// over; everything outside the new range is dropped (the caller is
// expected to have already handed those records to whoever is taking over
// that part of the range, per the protocol's send-then-resize ordering).
func (t *Table) Resize(newMin, newMax uint8) {
	next := New(newMin, newMax)
	lo, hi := newMin, newMax
	if lo < t.min {
		lo = t.min
	}
	if hi > t.max {
		hi = t.max
	}
	if lo <= hi {
		for h := int(lo); h <= int(hi); h++ {
			next.buckets[h] = t.buckets[h]
		}
	}
	*t = *next
}
