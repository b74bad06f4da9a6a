// Package netio implements the node's buffered socket reader: a per-slot
// growable buffer read with deadlines instead of blocking forever, which is
// the natural expression of "poll with a timeout" in a single-threaded Go
// program talking to at most four sockets.
package netio

import (
	"errors"
	"net"
	"time"

	"github.com/jroosing/ringnode/internal/pool"
	"github.com/jroosing/ringnode/internal/wire"
)

// BufSize is the initial/scratch chunk size for a slot's read buffer.
const BufSize = 1024

var chunkPool = pool.New(func() *[]byte {
	buf := make([]byte, BufSize)
	return &buf
})

// SlotBuffer owns one socket's unconsumed bytes. The zero value is not
// usable; construct with NewTCPSlot or NewUDPSlot.
type SlotBuffer struct {
	conn net.Conn
	udp  *net.UDPConn
	buf  []byte
}

// NewTCPSlot wraps a TCP connection (sockets B and D).
func NewTCPSlot(conn net.Conn) *SlotBuffer {
	return &SlotBuffer{conn: conn}
}

// NewUDPSlot wraps the tracker datagram socket (socket A).
func NewUDPSlot(conn *net.UDPConn) *SlotBuffer {
	return &SlotBuffer{udp: conn}
}

// Conn returns the underlying TCP connection, or nil for a UDP slot.
func (s *SlotBuffer) Conn() net.Conn { return s.conn }

// Replace swaps in a new TCP connection for this slot (used when a slot is
// torn down and reopened during a split/merge/teardown handler), clearing
// any unconsumed bytes left over from the previous connection.
func (s *SlotBuffer) Replace(conn net.Conn) {
	s.conn = conn
	s.buf = nil
}

// Close closes the underlying socket, if any.
func (s *SlotBuffer) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	if s.udp != nil {
		return s.udp.Close()
	}
	return nil
}

// Len reports how many unconsumed bytes are currently buffered.
func (s *SlotBuffer) Len() int { return len(s.buf) }

// Bytes exposes the unconsumed buffer, for PeekType/parsing.
func (s *SlotBuffer) Bytes() []byte { return s.buf }

// Consume drops the first n bytes, shifting the remainder left. Consuming
// more than Len() panics — callers must only consume what Peek-and-parse
// reported.
func (s *SlotBuffer) Consume(n int) {
	if n > len(s.buf) {
		panic("netio: consume past end of buffer")
	}
	s.buf = append(s.buf[:0], s.buf[n:]...)
}

// UDPConnWriteTo writes a datagram out through this slot's UDP socket. It is
// the write-side counterpart to PollUDP/ReadExactType, used for everything
// sent to the tracker or back to a VAL_LOOKUP sender.
func (s *SlotBuffer) UDPConnWriteTo(b []byte, addr *net.UDPAddr) (int, error) {
	if s.udp == nil {
		return 0, errors.New("netio: UDPConnWriteTo called on a non-UDP slot")
	}
	return s.udp.WriteToUDP(b, addr)
}

// PollUDP drains any datagrams currently waiting on socket A, appending them
// to the buffer, until the read times out or the deadline elapses. A
// timeout is not an error: it means nothing is readable right now.
func (s *SlotBuffer) PollUDP(timeout time.Duration) error {
	if s.udp == nil {
		return errors.New("netio: PollUDP called on a non-UDP slot")
	}
	chunkPtr := chunkPool.Get()
	defer chunkPool.Put(chunkPtr)
	chunk := *chunkPtr

	deadline := time.Now().Add(timeout)
	for {
		if err := s.udp.SetReadDeadline(deadline); err != nil {
			return err
		}
		n, _, err := s.udp.ReadFromUDP(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return err
		}
		if time.Now().After(deadline) {
			return nil
		}
	}
}

// PollTCP makes one read on this TCP slot, waiting at most timeout, and
// appends whatever arrived (up to BufSize bytes) to the buffer; bytes beyond
// that stay in the socket for the next poll. A closed/hung-up peer is
// tolerated: it is reported back via the ok return so the caller can treat
// the slot as skipped, rather than failing the whole poll round.
func (s *SlotBuffer) PollTCP(timeout time.Duration) (ok bool, err error) {
	if s.conn == nil {
		// Not yet connected (e.g. D before a predecessor has attached).
		// Indistinguishable from a hang-up to the caller, and handled the
		// same way: skip this slot.
		return false, nil
	}
	chunkPtr := chunkPool.Get()
	defer chunkPool.Put(chunkPtr)
	chunk := *chunkPtr

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	n, err := s.conn.Read(chunk)
	if n > 0 {
		s.buf = append(s.buf, chunk[:n]...)
	}
	if err != nil {
		if isTimeout(err) {
			return true, nil
		}
		// EOF or reset: the peer hung up. Tolerated, not fatal.
		return false, nil
	}
	return true, nil
}

// PollTCPSlots polls every slot in turn with a shared timeout, silently
// skipping any that have hung up. It is the multi-slot counterpart to
// PollTCP, covering the successor (B), listener-accepted predecessor (D),
// and any other TCP slot that needs to be serviced together each main-loop
// iteration.
func PollTCPSlots(slots []*SlotBuffer, timeout time.Duration) {
	for _, s := range slots {
		if s == nil {
			continue
		}
		_, _ = s.PollTCP(timeout)
	}
}

// ReadExactType blocks, with no deadline, re-polling this slot until a
// frame of the wanted type becomes available, discarding any frame of a
// different type it encounters along the way. It is used only during
// bootstrap and range handover, where exactly one frame class is
// acceptable and there is nothing useful to do but wait.
func (s *SlotBuffer) ReadExactType(want wire.Type) (wire.Frame, error) {
	const pollInterval = 500 * time.Millisecond
	for {
		for len(s.buf) > 0 {
			frame, n, err := wire.ParseAny(s.buf)
			switch {
			case errors.Is(err, wire.ErrShortBuffer):
				// Not enough bytes yet to know the frame's full length.
			case errors.Is(err, wire.ErrUnknownType):
				s.Consume(1)
				continue
			case err != nil:
				return nil, err
			case frame.Type() == want:
				s.Consume(n)
				return frame, nil
			default:
				s.Consume(n)
				continue
			}
			break
		}
		if s.udp != nil {
			if err := s.PollUDP(pollInterval); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := s.PollTCP(pollInterval); err != nil {
			return nil, err
		}
	}
}

// ErrTimeout is returned by ReadExactTypeDeadline when no frame of the
// wanted type arrives before the deadline elapses.
var ErrTimeout = errors.New("netio: timed out waiting for frame")

// ReadExactTypeDeadline behaves like ReadExactType but gives up once timeout
// elapses instead of blocking forever, for the one place that isn't allowed
// to wait indefinitely: bootstrap against a tracker that may simply not
// answer.
func (s *SlotBuffer) ReadExactTypeDeadline(want wire.Type, timeout time.Duration) (wire.Frame, error) {
	const pollInterval = 100 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		for len(s.buf) > 0 {
			frame, n, err := wire.ParseAny(s.buf)
			switch {
			case errors.Is(err, wire.ErrShortBuffer):
				// Not enough bytes yet to know the frame's full length.
			case errors.Is(err, wire.ErrUnknownType):
				s.Consume(1)
				continue
			case err != nil:
				return nil, err
			case frame.Type() == want:
				s.Consume(n)
				return frame, nil
			default:
				s.Consume(n)
				continue
			}
			break
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		poll := pollInterval
		if remaining < poll {
			poll = remaining
		}
		if s.udp != nil {
			if err := s.PollUDP(poll); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := s.PollTCP(poll); err != nil {
			return nil, err
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
