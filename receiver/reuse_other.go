//go:build !linux

package receiver

import (
	"syscall"
)

func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
