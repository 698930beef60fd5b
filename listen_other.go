//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package lineproto

import (
	"syscall"

	"github.com/pkg/errors"
)

// ErrReusePortUnsupported is returned by New when port reuse is requested on
// a platform without SO_REUSEPORT.
var ErrReusePortUnsupported = errors.New("SO_REUSEPORT not supported on this platform")

func reusePortControl(_, _ string, _ syscall.RawConn) error {
	return ErrReusePortUnsupported
}
