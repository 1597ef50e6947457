//go:build !windows

package supervisor

import "syscall"

// detachAttrs puts the child in its own session so closing the invoking
// terminal does not deliver it a hangup signal.
func detachAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
