package fsm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jroosing/ringnode/internal/netio"
	"github.com/jroosing/ringnode/internal/ringtable"
	"github.com/jroosing/ringnode/internal/sshash"
	"github.com/jroosing/ringnode/internal/wire"
)

// handler is the signature every state satisfies: examine/mutate the node,
// return the next state (or an error that maps to the Fatal I/O exit path).
type handler func(ctx context.Context, n *Node) (State, error)

var handlers = map[State]handler{
	Q1:  q1Init,
	Q2:  q2Stun,
	Q3:  q3Discover,
	Q4:  q4SolitaryInit,
	Q5:  q5AcceptFromJoiner,
	Q6:  q6MainLoop,
	Q7:  q7JoinRing,
	Q8:  q8Attach,
	Q9:  q9DataOp,
	Q10: q10LeaveDecision,
	Q11: q11AnnounceRange,
	Q12: q12JoinDispatch,
	Q13: q13AdoptJoiner,
	Q14: q14Relay,
	Q15: q15AbsorbRange,
	Q16: q16SuccessorLeft,
	Q17: q17PredecessorLeft,
	Q18: q18Teardown,
}

// q1Init opens the tracker UDP socket and the two TCP slots every node needs
// regardless of ring position: B (successor, dialed later) and C (listener,
// accepting D). STUN_LOOKUP itself is sent by q2Stun, which also owns the
// bootstrap retry loop.
func q1Init(ctx context.Context, n *Node) (State, error) {
	a, err := netio.ListenUDPReuseAddr(ctx, ":0")
	if err != nil {
		return 0, fmt.Errorf("q1: open tracker socket: %w", err)
	}
	n.a = netio.NewUDPSlot(a)

	ln, err := netio.ListenReuseAddr(ctx, ":0")
	if err != nil {
		return 0, fmt.Errorf("q1: open listener: %w", err)
	}
	n.c = ln
	n.listenPort = uint16(ln.Addr().(*net.TCPAddr).Port)

	n.b = netio.NewTCPSlot(nil)
	n.d = netio.NewTCPSlot(nil)

	return Q2, nil
}

// q2Stun sends STUN_LOOKUP and waits for STUN_RESPONSE, retrying against a
// tracker that doesn't answer right away, and records our own address as
// every peer will see it.
func q2Stun(ctx context.Context, n *Node) (State, error) {
	frame, err := bootstrapRequest(n, wire.TypeStunResponse, func() error {
		_, err := n.a.UDPConnWriteTo(wire.StunLookup{}.Serialize(), n.trackerAddr)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("q2: waiting for STUN_RESPONSE: %w", err)
	}
	resp := frame.(wire.StunResponse)
	n.self = peerRef{addr: resp.Address, port: n.listenPort}
	return Q3, nil
}

// q3Discover asks the tracker for an existing member to join through.
func q3Discover(ctx context.Context, n *Node) (State, error) {
	frame, err := bootstrapRequest(n, wire.TypeNetGetNodeResponse, func() error {
		_, err := n.a.UDPConnWriteTo(wire.NetGetNode{}.Serialize(), n.trackerAddr)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("q3: waiting for NET_GET_NODE_RESPONSE: %w", err)
	}
	resp := frame.(wire.NetGetNodeResponse)
	if resp.Address == 0 && resp.Port == 0 {
		return Q4, nil
	}
	n.successor = peerRef{addr: resp.Address, port: resp.Port}
	return Q7, nil
}

// q4SolitaryInit creates the full-range table for a node starting its own,
// empty ring.
func q4SolitaryInit(ctx context.Context, n *Node) (State, error) {
	n.table = ringtable.New(0, 255)
	return Q6, nil
}

// q5AcceptFromJoiner is entered from Q12 when this solitary node receives
// NET_JOIN. It gives the joiner the upper half of our range and accepts
// them as our new predecessor.
func q5AcceptFromJoiner(ctx context.Context, n *Node) (State, error) {
	join := n.lastPDU.(wire.NetJoin)

	conn, err := net.Dial("tcp", peerRef{addr: join.SrcAddr, port: join.SrcPort}.dialAddr())
	if err != nil {
		return 0, fmt.Errorf("q5: connecting to joiner: %w", err)
	}
	n.b.Replace(conn)
	n.successor = peerRef{addr: join.SrcAddr, port: join.SrcPort}

	min, max := n.table.Min(), n.table.Max()
	mid := splitMidpoint(min, max)
	resp := wire.NetJoinResponse{
		NextAddr:   n.self.addr,
		NextPort:   n.self.port,
		RangeStart: mid + 1,
		RangeEnd:   max,
	}
	if _, err := conn.Write(resp.Serialize()); err != nil {
		return 0, fmt.Errorf("q5: send NET_JOIN_RESPONSE: %w", err)
	}

	if err := transferEntryRange(n, conn, mid+1); err != nil {
		return 0, fmt.Errorf("q5: transferring records: %w", err)
	}
	n.table.Resize(min, mid)

	if err := acceptPredecessor(n); err != nil {
		return 0, fmt.Errorf("q5: accepting predecessor: %w", err)
	}
	return Q6, nil
}

// q6MainLoop is run once per iteration of the node's whole lifetime: send a
// keep-alive if due, poll every slot, and dispatch the first complete frame
// found, in slot order A, B, C, D. C itself carries no payload — a readable
// listener there means a new predecessor connection is waiting, which is
// accepted into D before dispatch continues.
func q6MainLoop(ctx context.Context, n *Node) (State, error) {
	if time.Since(n.lastAlive) > n.Timing.KeepAliveInterval {
		if _, err := n.a.UDPConnWriteTo(wire.NetAlive{}.Serialize(), n.trackerAddr); err != nil {
			return 0, fmt.Errorf("q6: send NET_ALIVE: %w", err)
		}
		n.lastAlive = time.Now()
	}

	if err := n.a.PollUDP(n.Timing.Poll); err != nil {
		return 0, fmt.Errorf("q6: polling tracker socket: %w", err)
	}
	netio.PollTCPSlots([]*netio.SlotBuffer{n.b, n.d}, n.Timing.Poll)
	acceptPendingPredecessor(n)

	for _, slot := range []*netio.SlotBuffer{n.a, n.b, n.d} {
		if slot == nil || slot.Len() == 0 {
			continue
		}
		frame, consumed, err := wire.ParseAny(slot.Bytes())
		if err != nil {
			if errors.Is(err, wire.ErrShortBuffer) {
				continue
			}
			if errors.Is(err, wire.ErrUnknownType) {
				slot.Consume(1)
				continue
			}
			return 0, fmt.Errorf("q6: parsing frame: %w", err)
		}
		slot.Consume(consumed)

		switch frame.Type() {
		case wire.TypeValInsert, wire.TypeValRemove, wire.TypeValLookup:
			n.lastPDU = frame
			return Q9, nil
		case wire.TypeNetNewRange:
			n.lastPDU = frame
			return Q15, nil
		case wire.TypeNetLeaving:
			n.lastPDU = frame
			return Q16, nil
		case wire.TypeNetCloseConnection:
			n.lastPDU = frame
			return Q17, nil
		case wire.TypeNetJoin:
			n.lastPDU = frame
			return Q12, nil
		}
	}

	if n.shouldClose || ctx.Err() != nil {
		return Q10, nil
	}
	return Q6, nil
}

// q7JoinRing sends NET_JOIN to the node the tracker returned, accepts our
// predecessor, and blocks until the response comes back.
func q7JoinRing(ctx context.Context, n *Node) (State, error) {
	conn, err := net.Dial("tcp", n.successor.dialAddr())
	if err != nil {
		return 0, fmt.Errorf("q7: dialing join target: %w", err)
	}
	n.b.Replace(conn)

	join := wire.NetJoin{
		SrcAddr: n.self.addr,
		SrcPort: n.self.port,
		MaxSpan: 0,
		MaxAddr: 0,
		MaxPort: 0,
	}
	if _, err := conn.Write(join.Serialize()); err != nil {
		return 0, fmt.Errorf("q7: send NET_JOIN: %w", err)
	}

	if err := acceptPredecessor(n); err != nil {
		return 0, fmt.Errorf("q7: accepting predecessor: %w", err)
	}

	frame, err := n.d.ReadExactType(wire.TypeNetJoinResponse)
	if err != nil {
		return 0, fmt.Errorf("q7: waiting for NET_JOIN_RESPONSE: %w", err)
	}
	n.lastPDU = frame
	return Q8, nil
}

// q8Attach creates the owned-range table from the join response and
// connects B to our new successor.
func q8Attach(ctx context.Context, n *Node) (State, error) {
	resp := n.lastPDU.(wire.NetJoinResponse)
	n.table = ringtable.New(resp.RangeStart, resp.RangeEnd)

	n.successor = peerRef{addr: resp.NextAddr, port: resp.NextPort}
	conn, err := net.Dial("tcp", n.successor.dialAddr())
	if err != nil {
		return 0, fmt.Errorf("q8: connecting to successor: %w", err)
	}
	n.b.Replace(conn)

	return Q6, nil
}

// q9DataOp applies the decoded VAL_* frame stored in lastPDU, forwarding on
// B whenever the local table doesn't own the hash.
func q9DataOp(ctx context.Context, n *Node) (State, error) {
	switch pdu := n.lastPDU.(type) {
	case wire.ValInsert:
		hash := sshash.HashSSN(pdu.SSN)
		rec := ringtable.Record{SSN: pdu.SSN, Name: pdu.Name, Email: pdu.Email}
		if err := n.table.Insert(rec, hash); err != nil {
			if _, werr := n.b.Conn().Write(pdu.Serialize()); werr != nil {
				return 0, fmt.Errorf("q9: forwarding VAL_INSERT: %w", werr)
			}
		}
	case wire.ValRemove:
		hash := sshash.HashSSN(pdu.SSN)
		if err := n.table.Remove(pdu.SSN, hash); err != nil {
			if _, werr := n.b.Conn().Write(pdu.Serialize()); werr != nil {
				return 0, fmt.Errorf("q9: forwarding VAL_REMOVE: %w", werr)
			}
		}
	case wire.ValLookup:
		hash := sshash.HashSSN(pdu.SSN)
		rec, found, err := n.table.Lookup(pdu.SSN, hash)
		if err != nil {
			if _, werr := n.b.Conn().Write(pdu.Serialize()); werr != nil {
				return 0, fmt.Errorf("q9: forwarding VAL_LOOKUP: %w", werr)
			}
			return Q6, nil
		}
		var resp wire.ValLookupResponse
		if found {
			resp = wire.ValLookupResponse{SSN: pdu.SSN, Name: rec.Name, Email: rec.Email}
		}
		dst := &net.UDPAddr{IP: uint32ToIP(pdu.SenderAddr), Port: int(pdu.SenderPort)}
		if _, err := n.a.UDPConnWriteTo(resp.Serialize(), dst); err != nil {
			return 0, fmt.Errorf("q9: sending VAL_LOOKUP_RESPONSE: %w", err)
		}
	}
	return Q6, nil
}

// q10LeaveDecision decides whether leaving means tearing the whole ring
// down (we are the only member) or announcing our range to a neighbor.
func q10LeaveDecision(ctx context.Context, n *Node) (State, error) {
	if n.solitary() {
		return StateExit, nil
	}
	return Q11, nil
}

// q11AnnounceRange hands our whole range to a neighbor: forward to the
// successor if we own the bottom of the space, otherwise backward to the
// predecessor.
func q11AnnounceRange(ctx context.Context, n *Node) (State, error) {
	slot, dst := n.handoffTarget()
	rng := wire.NetNewRange{RangeStart: n.table.Min(), RangeEnd: n.table.Max()}
	if _, err := dst.Write(rng.Serialize()); err != nil {
		return 0, fmt.Errorf("q11: sending NET_NEW_RANGE: %w", err)
	}
	if _, err := slot.ReadExactType(wire.TypeNetNewRangeResponse); err != nil {
		return 0, fmt.Errorf("q11: waiting for NET_NEW_RANGE_RESPONSE: %w", err)
	}
	return Q18, nil
}

// handoffTarget picks which neighbor link absorbs our range: the successor
// if we own the bottom of the hash space, the predecessor otherwise.
func (n *Node) handoffTarget() (*netio.SlotBuffer, net.Conn) {
	if n.table.Min() == 0 {
		return n.b, n.b.Conn()
	}
	return n.d, n.d.Conn()
}

// q12JoinDispatch routes an incoming NET_JOIN: absorb it directly if we're
// alone, adopt the joiner if we hold the largest span seen so far, or relay
// it onward otherwise.
func q12JoinDispatch(ctx context.Context, n *Node) (State, error) {
	join := n.lastPDU.(wire.NetJoin)
	if n.solitary() {
		return Q5, nil
	}
	if join.MaxAddr == n.self.addr && join.MaxPort == n.self.port {
		return Q13, nil
	}
	return Q14, nil
}

// q13AdoptJoiner replaces our successor with the joiner: the old successor
// is told to close, B is reopened against the joiner, and the joiner gets
// the upper half of our range.
func q13AdoptJoiner(ctx context.Context, n *Node) (State, error) {
	join := n.lastPDU.(wire.NetJoin)

	if n.b.Conn() != nil {
		if _, err := n.b.Conn().Write(wire.NetCloseConnection{}.Serialize()); err != nil {
			return 0, fmt.Errorf("q13: closing old successor: %w", err)
		}
		_ = n.b.Close()
	}

	conn, err := net.Dial("tcp", peerRef{addr: join.SrcAddr, port: join.SrcPort}.dialAddr())
	if err != nil {
		return 0, fmt.Errorf("q13: connecting to joiner: %w", err)
	}
	oldSuccessor := n.successor
	n.b.Replace(conn)
	n.successor = peerRef{addr: join.SrcAddr, port: join.SrcPort}

	min, max := n.table.Min(), n.table.Max()
	mid := splitMidpoint(min, max)
	resp := wire.NetJoinResponse{
		NextAddr:   oldSuccessor.addr,
		NextPort:   oldSuccessor.port,
		RangeStart: mid + 1,
		RangeEnd:   max,
	}
	if _, err := conn.Write(resp.Serialize()); err != nil {
		return 0, fmt.Errorf("q13: send NET_JOIN_RESPONSE: %w", err)
	}

	if err := transferEntryRange(n, conn, mid+1); err != nil {
		return 0, fmt.Errorf("q13: transferring records: %w", err)
	}
	n.table.Resize(min, mid)

	return Q6, nil
}

// q14Relay forwards a NET_JOIN around the ring, first updating its
// max-span fields if our own span is larger than what it currently
// carries.
func q14Relay(ctx context.Context, n *Node) (State, error) {
	join := n.lastPDU.(wire.NetJoin)
	if n.table.Span() > int(join.MaxSpan) {
		join.MaxSpan = uint8(n.table.Span())
		join.MaxAddr = n.self.addr
		join.MaxPort = n.self.port
	}
	if _, err := n.b.Conn().Write(join.Serialize()); err != nil {
		return 0, fmt.Errorf("q14: relaying NET_JOIN: %w", err)
	}
	return Q6, nil
}

// q15AbsorbRange merges an abandoned range into ours, acknowledges along
// whichever socket it arrived on, and resizes the table to cover the union.
func q15AbsorbRange(ctx context.Context, n *Node) (State, error) {
	rng := n.lastPDU.(wire.NetNewRange)

	min, max := n.table.Min(), n.table.Max()
	newMin, newMax := min, max
	if rng.RangeStart < newMin {
		newMin = rng.RangeStart
	}
	if rng.RangeEnd > newMax {
		newMax = rng.RangeEnd
	}

	// Heuristic from the handover's own shape: if our current max isn't
	// the top of the space and the incoming range starts right after it,
	// the range arrived from our successor; otherwise our predecessor.
	fromSuccessor := max != 255 && rng.RangeStart == max+1
	var replyConn net.Conn
	if fromSuccessor {
		replyConn = n.b.Conn()
	} else {
		replyConn = n.d.Conn()
	}
	if _, err := replyConn.Write(wire.NetNewRangeResponse{}.Serialize()); err != nil {
		return 0, fmt.Errorf("q15: sending NET_NEW_RANGE_RESPONSE: %w", err)
	}

	n.table.Resize(newMin, newMax)
	return Q6, nil
}

// q16SuccessorLeft replaces our successor link after NET_LEAVING: close B,
// reconnect to the new successor named in the frame unless the merge left
// us alone.
func q16SuccessorLeft(ctx context.Context, n *Node) (State, error) {
	leaving := n.lastPDU.(wire.NetLeaving)
	if n.b.Conn() != nil {
		_ = n.b.Close()
	}
	if !n.solitary() {
		conn, err := net.Dial("tcp", peerRef{addr: leaving.NewAddr, port: leaving.NewPort}.dialAddr())
		if err != nil {
			return 0, fmt.Errorf("q16: reconnecting successor: %w", err)
		}
		n.b.Replace(conn)
		n.successor = peerRef{addr: leaving.NewAddr, port: leaving.NewPort}
	}
	return Q6, nil
}

// q17PredecessorLeft closes D and either accepts a fresh predecessor or, if
// the merge left us alone, clears the predecessor entirely. Distinct from
// Q16 — the two are not the same handler, unlike the fallthrough in the
// system this implements.
func q17PredecessorLeft(ctx context.Context, n *Node) (State, error) {
	if n.d.Conn() != nil {
		_ = n.d.Close()
	}
	if n.solitary() {
		return Q6, nil
	}
	if err := acceptPredecessor(n); err != nil {
		return 0, fmt.Errorf("q17: accepting predecessor: %w", err)
	}
	return Q6, nil
}

// q18Teardown hands our remaining records to whichever neighbor is
// absorbing our range, closes the successor link, and tells our
// predecessor who its new successor is before exiting.
func q18Teardown(ctx context.Context, n *Node) (State, error) {
	_, dst := n.handoffTarget()
	if err := transferEntryRange(n, dst, n.table.Min()); err != nil {
		return 0, fmt.Errorf("q18: transferring remaining records: %w", err)
	}

	if n.b.Conn() != nil {
		if _, err := n.b.Conn().Write(wire.NetCloseConnection{}.Serialize()); err != nil {
			return 0, fmt.Errorf("q18: closing successor: %w", err)
		}
	}

	if n.d.Conn() != nil {
		leaving := wire.NetLeaving{NewAddr: n.successor.addr, NewPort: n.successor.port}
		if _, err := n.d.Conn().Write(leaving.Serialize()); err != nil {
			return 0, fmt.Errorf("q18: notifying predecessor: %w", err)
		}
	}

	return StateExit, nil
}

// transferEntryRange streams every record whose hash is >= from to dst as
// VAL_INSERT frames. It does not touch the local table: the splitting
// callers (q5, q13) resize it afterwards, giving the strict send-then-resize
// order the concurrency model requires, so the recipient never sees traffic
// referencing a record it hasn't received yet.
func transferEntryRange(n *Node, dst net.Conn, from uint8) error {
	records := n.table.BucketsFrom(from)
	for _, rec := range records {
		insert := wire.ValInsert{SSN: rec.SSN, Name: rec.Name, Email: rec.Email}
		if _, err := dst.Write(insert.Serialize()); err != nil {
			return err
		}
	}
	return nil
}

// acceptPredecessor blocks on the listener for a new predecessor connection
// and installs it as slot D.
func acceptPredecessor(n *Node) error {
	// Clear any short deadline left on the listener by
	// acceptPendingPredecessor, so this Accept really blocks.
	if tcpLn, ok := n.c.(*net.TCPListener); ok {
		if err := tcpLn.SetDeadline(time.Time{}); err != nil {
			return err
		}
	}
	conn, err := n.c.Accept()
	if err != nil {
		return err
	}
	n.d.Replace(conn)
	return nil
}

// acceptPendingPredecessor is the non-blocking counterpart used inside Q6:
// if a connection is already waiting on the listener, accept it into D;
// otherwise return immediately. This is how this node expresses "poll C
// together with B and D" from a listener, which has no readable payload of
// its own to poll.
func acceptPendingPredecessor(n *Node) {
	tcpLn, ok := n.c.(*net.TCPListener)
	if !ok {
		return
	}
	if err := tcpLn.SetDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return
	}
	conn, err := tcpLn.Accept()
	if err != nil {
		return
	}
	n.d.Replace(conn)
}

// bootstrapRequest sends a request via send and waits for a reply of type
// want, making up to Timing.BootstrapRetries attempts in all (at least one),
// each bounded by Timing.BootstrapTimeout. The tracker is allowed to be briefly
// unreachable during bootstrap; it is not allowed to hang the node forever.
func bootstrapRequest(n *Node, want wire.Type, send func() error) (wire.Frame, error) {
	attempts := n.Timing.BootstrapRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := send(); err != nil {
			return nil, err
		}
		frame, err := n.a.ReadExactTypeDeadline(want, n.Timing.BootstrapTimeout)
		if err == nil {
			return frame, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("tracker unreachable after %d attempts: %w", attempts, lastErr)
}

func uint32ToIP(v uint32) net.IP {
	ip := make(net.IP, 4)
	binary.LittleEndian.PutUint32(ip, v)
	return ip
}
