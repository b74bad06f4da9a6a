package fsm

import (
	"testing"

	"github.com/jroosing/ringnode/internal/ringtable"
	"github.com/stretchr/testify/assert"
)

func TestSplitMidpoint(t *testing.T) {
	tests := []struct {
		min, max uint8
		want     uint8
	}{
		{0, 255, 127},
		{0, 1, 0},
		{10, 20, 15},
		{0, 0, 0},
		{254, 255, 254},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitMidpoint(tt.min, tt.max))
	}
}

func TestPeerRefDialAddr(t *testing.T) {
	p := peerRef{addr: 0x0100007f, port: 9001} // 127.0.0.1 little-endian
	assert.Equal(t, "127.0.0.1:9001", p.dialAddr())
}

func TestPeerRefIsZero(t *testing.T) {
	assert.True(t, peerRef{}.isZero())
	assert.False(t, peerRef{addr: 1}.isZero())
	assert.False(t, peerRef{port: 1}.isZero())
}

func TestNodeSolitary(t *testing.T) {
	n := &Node{}
	assert.False(t, n.solitary(), "nil table is never solitary")

	n.table = ringtable.New(0, 255)
	assert.True(t, n.solitary())

	n.table.Resize(0, 127)
	assert.False(t, n.solitary())
}
