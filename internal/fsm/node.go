// Package fsm implements the ring node's state machine: eighteen numbered
// states plus a terminal EXIT, each a handler examining and mutating a
// single Node and returning the next state to run. Exactly one handler is
// ever active at a time — there is no shared mutable state across
// goroutines and no synchronization primitive is needed, by design (the
// system this implements is single-threaded and cooperatively scheduled).
package fsm

import (
	"encoding/binary"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/jroosing/ringnode/internal/netio"
	"github.com/jroosing/ringnode/internal/ringtable"
	"github.com/jroosing/ringnode/internal/wire"
)

// State names one of the eighteen numbered states or the terminal EXIT.
type State int

const (
	Q1 State = iota + 1
	Q2
	Q3
	Q4
	Q5
	Q6
	Q7
	Q8
	Q9
	Q10
	Q11
	Q12
	Q13
	Q14
	Q15
	Q16
	Q17
	Q18
	StateExit
)

// peerRef names a ring neighbor by the address/port pair carried on the
// wire — little-endian u32 address, little-endian u16 port (see Open
// Question 2: this is a deliberate, self-consistent choice, not network
// byte order).
type peerRef struct {
	addr uint32
	port uint16
}

func (p peerRef) isZero() bool { return p.addr == 0 && p.port == 0 }

func (p peerRef) dialAddr() string {
	ip := make(net.IP, 4)
	binary.LittleEndian.PutUint32(ip, p.addr)
	return net.JoinHostPort(ip.String(), strconv.Itoa(int(p.port)))
}

// Timing bundles every duration a handler blocks on or schedules against.
type Timing struct {
	Poll              time.Duration
	KeepAliveInterval time.Duration
	BootstrapTimeout  time.Duration
	BootstrapRetries  int
}

// Node is the single ring participant driven by the state machine. It owns
// the four socket slots, the owned-range table, and the bookkeeping needed
// to move between states.
type Node struct {
	Logger *slog.Logger
	Timing Timing

	trackerAddr *net.UDPAddr

	self       peerRef
	listenPort uint16
	successor  peerRef

	a *netio.SlotBuffer // UDP tracker channel
	b *netio.SlotBuffer // TCP successor link (outbound)
	c net.Listener      // TCP listener, accepts predecessor
	d *netio.SlotBuffer // TCP predecessor link (inbound, via c)

	table *ringtable.Table

	lastPDU   wire.Frame
	lastAlive time.Time

	shouldClose bool
}

// NewNode constructs a Node ready to run from Q1, targeting the given
// tracker address.
func NewNode(logger *slog.Logger, timing Timing, tracker *net.UDPAddr) *Node {
	return &Node{
		Logger:      logger,
		Timing:      timing,
		trackerAddr: tracker,
	}
}

// solitary reports whether this node currently owns the entire hash space,
// i.e. it is the only member of the ring.
func (n *Node) solitary() bool {
	return n.table != nil && n.table.Min() == 0 && n.table.Max() == 255
}

func splitMidpoint(min, max uint8) uint8 {
	return uint8((int(min) + int(max)) / 2)
}
