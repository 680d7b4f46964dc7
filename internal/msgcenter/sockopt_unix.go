//go:build unix

package msgcenter

import "syscall"

// allowBroadcast enables sending to broadcast addresses
func allowBroadcast(network, address string, c syscall.RawConn) error {
	var err error
	if cerr := c.Control(func(fd uintptr) {
		err = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); cerr != nil {
		return cerr
	}
	return err
}
