//go:build !unix

package msgcenter

import "syscall"

func allowBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
