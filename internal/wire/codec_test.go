package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ssnOf(s string) [12]byte {
	var b [12]byte
	copy(b[:], s)
	return b
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		parse func([]byte) (Frame, int, error)
	}{
		{"StunLookup", StunLookup{}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"StunResponse", StunResponse{Address: 0x0100007F}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetAlive", NetAlive{}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetGetNode", NetGetNode{}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetGetNodeResponse", NetGetNodeResponse{Address: 1, Port: 9001}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetJoin", NetJoin{SrcAddr: 1, SrcPort: 2, MaxSpan: 255, MaxAddr: 3, MaxPort: 4}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetJoinResponse", NetJoinResponse{NextAddr: 1, NextPort: 2, RangeStart: 128, RangeEnd: 255}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetLeaving", NetLeaving{NewAddr: 1, NewPort: 2}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetNewRange", NetNewRange{RangeStart: 0, RangeEnd: 127}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetNewRangeResponse", NetNewRangeResponse{}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"NetCloseConnection", NetCloseConnection{}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"ValInsert", ValInsert{SSN: ssnOf("aaaaabbbbbcc"), Name: "Ada", Email: "a@b"}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"ValRemove", ValRemove{SSN: ssnOf("aaaaabbbbbcc")}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"ValLookup", ValLookup{SSN: ssnOf("aaaaabbbbbcc"), SenderAddr: 0x0100007F, SenderPort: 5000}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"ValLookupResponse", ValLookupResponse{SSN: ssnOf("aaaaabbbbbcc"), Name: "Rolf", Email: "rolf@x"}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
		{"ValLookupResponse empty", ValLookupResponse{SSN: ssnOf("aaaaabbbbbcc")}, func(b []byte) (Frame, int, error) { return ParseAny(b) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			serialized := tc.frame.Serialize()
			got, n, err := tc.parse(serialized)
			require.NoError(t, err)
			assert.Equal(t, len(serialized), n)
			assert.Equal(t, tc.frame, got)
		})
	}
}

// TestValInsertWireLayout is scenario S5 from the testable-properties list:
// ssn="aaaaabbbbbcc", name="Ada" (3), email="a@b" (3) serializes to 21
// bytes: [type, 12 ssn bytes, 0x03, 'A','d','a', 0x03, 'a','@','b'].
func TestValInsertWireLayout(t *testing.T) {
	f := ValInsert{SSN: ssnOf("aaaaabbbbbcc"), Name: "Ada", Email: "a@b"}
	b := f.Serialize()
	require.Len(t, b, 21)
	assert.Equal(t, byte(TypeValInsert), b[0])
	assert.Equal(t, []byte("aaaaabbbbbcc"), b[1:13])
	assert.Equal(t, byte(3), b[13])
	assert.Equal(t, []byte("Ada"), b[14:17])
	assert.Equal(t, byte(3), b[17])
	assert.Equal(t, []byte("a@b"), b[18:21])
}

// TestUnknownTypeResync is scenario S6: a stream [0xFF, VAL_REMOVE, 12B ssn]
// produces one VAL_REMOVE dispatch after discarding the leading 0xFF.
func TestUnknownTypeResync(t *testing.T) {
	remove := ValRemove{SSN: ssnOf("aaaaabbbbbcc")}
	stream := append([]byte{0xFF}, remove.Serialize()...)

	_, _, err := ParseAny(stream)
	require.ErrorIs(t, err, ErrUnknownType)

	got, n, err := ParseAny(stream[1:])
	require.NoError(t, err)
	assert.Equal(t, remove, got)
	assert.Equal(t, len(remove.Serialize()), n)
}

func TestShortBuffer(t *testing.T) {
	full := NetJoin{SrcAddr: 1, SrcPort: 2, MaxSpan: 3, MaxAddr: 4, MaxPort: 5}.Serialize()
	for n := 0; n < len(full); n++ {
		_, _, err := ParseAny(full[:n])
		assert.ErrorIs(t, err, ErrShortBuffer, "n=%d", n)
	}
}

func TestValInsertShortBufferNeverPartiallyConsumes(t *testing.T) {
	full := ValInsert{SSN: ssnOf("aaaaabbbbbcc"), Name: "Rolf", Email: "rolf@example.com"}.Serialize()
	for n := 0; n < len(full); n++ {
		_, consumed, err := ParseAny(full[:n])
		require.ErrorIs(t, err, ErrShortBuffer)
		assert.Equal(t, 0, consumed)
	}
}

func TestPeekType(t *testing.T) {
	typ, err := PeekType([]byte{byte(TypeNetAlive), 0xAA})
	require.NoError(t, err)
	assert.Equal(t, TypeNetAlive, typ)

	_, err = PeekType(nil)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
