package netio

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenReuseAddr opens the node's single TCP listener (socket C) with
// SO_REUSEADDR set. A ring node never runs more than one listener — unlike
// a multi-core server binding one socket per CPU with SO_REUSEPORT, this
// node is single-threaded and only ever needs its bound port to become
// available again quickly across restarts.
func ListenReuseAddr(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}

// ListenUDPReuseAddr opens the node's tracker datagram socket (socket A)
// with SO_REUSEADDR set, for the same restart-friendliness reason as
// ListenReuseAddr.
func ListenUDPReuseAddr(ctx context.Context, addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
		},
	}
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}
