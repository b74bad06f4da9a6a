package fsm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jroosing/ringnode/internal/netio"
	"github.com/jroosing/ringnode/internal/ringtable"
	"github.com/jroosing/ringnode/internal/sshash"
	"github.com/jroosing/ringnode/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestSSN(s string) [12]byte {
	var b [12]byte
	copy(b[:], s)
	return b
}

// TestSolitaryInsertThenLookup exercises a solitary node storing a record
// and answering a VAL_LOOKUP for it over UDP with the sender it was told to
// reply to.
func TestSolitaryInsertThenLookup(t *testing.T) {
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer udpConn.Close()

	senderConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer senderConn.Close()
	senderAddr := senderConn.LocalAddr().(*net.UDPAddr)

	n := &Node{table: ringtable.New(0, 255), a: netio.NewUDPSlot(udpConn)}

	ssn := newTestSSN("aaaaabbbbbcc")
	n.lastPDU = wire.ValInsert{SSN: ssn, Name: "Rolf", Email: "rolf@x"}
	state, err := q9DataOp(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, Q6, state)

	n.lastPDU = wire.ValLookup{
		SSN:        ssn,
		SenderAddr: addrFromIP(senderAddr.IP),
		SenderPort: uint16(senderAddr.Port),
	}
	state, err = q9DataOp(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, Q6, state)

	buf := make([]byte, 256)
	require.NoError(t, senderConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	nRead, _, err := senderConn.ReadFromUDP(buf)
	require.NoError(t, err)

	frame, _, err := wire.ParseAny(buf[:nRead])
	require.NoError(t, err)
	resp, ok := frame.(wire.ValLookupResponse)
	require.True(t, ok)
	require.Equal(t, ssn, resp.SSN)
	require.Equal(t, "Rolf", resp.Name)
	require.Equal(t, "rolf@x", resp.Email)
}

// TestLookupMissingRecordRespondsEmpty checks that a VAL_LOOKUP for an SSN
// this node owns but has never stored answers with empty name/email instead
// of forwarding or erroring.
func TestLookupMissingRecordRespondsEmpty(t *testing.T) {
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer udpConn.Close()

	senderConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer senderConn.Close()
	senderAddr := senderConn.LocalAddr().(*net.UDPAddr)

	n := &Node{table: ringtable.New(0, 255), a: netio.NewUDPSlot(udpConn)}
	ssn := newTestSSN("neverstored0")
	n.lastPDU = wire.ValLookup{SSN: ssn, SenderAddr: addrFromIP(senderAddr.IP), SenderPort: uint16(senderAddr.Port)}

	state, err := q9DataOp(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, Q6, state)

	buf := make([]byte, 256)
	require.NoError(t, senderConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	nRead, _, err := senderConn.ReadFromUDP(buf)
	require.NoError(t, err)
	frame, _, err := wire.ParseAny(buf[:nRead])
	require.NoError(t, err)
	resp := frame.(wire.ValLookupResponse)
	require.Empty(t, resp.Name)
	require.Empty(t, resp.Email)
	require.Equal(t, [12]byte{}, resp.SSN)
}

// TestForwardOnMissForwardsUnchanged checks that a VAL_INSERT whose hash
// this node doesn't own is forwarded byte-for-byte along B rather than
// stored or dropped.
func TestForwardOnMissForwardsUnchanged(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, acceptErr := ln.Accept()
		require.NoError(t, acceptErr)
		accepted <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	peer := <-accepted
	defer peer.Close()

	ssn := newTestSSN("outofrange01")
	hash := sshash.HashSSN(ssn)
	var tbl *ringtable.Table
	if hash <= 127 {
		tbl = ringtable.New(128, 255)
	} else {
		tbl = ringtable.New(0, 127)
	}
	n := &Node{table: tbl, b: netio.NewTCPSlot(client)}

	insert := wire.ValInsert{SSN: ssn, Name: "Far", Email: "far@x"}
	n.lastPDU = insert
	state, err := q9DataOp(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, Q6, state)

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	nRead, err := peer.Read(buf)
	require.NoError(t, err)
	frame, consumed, err := wire.ParseAny(buf[:nRead])
	require.NoError(t, err)
	require.Equal(t, nRead, consumed)
	require.Equal(t, insert, frame.(wire.ValInsert))

	_, found, lookupErr := tbl.Lookup(ssn, hash)
	require.ErrorIs(t, lookupErr, ringtable.ErrOutOfRange)
	require.False(t, found)
}
