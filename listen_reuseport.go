//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package lineproto

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reusePortControl enables SO_REUSEADDR and SO_REUSEPORT on a listening socket.
func reusePortControl(_, _ string, rc syscall.RawConn) error {
	var sockErr error
	err := rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
