//go:build linux

package impersonate

import "golang.org/x/sys/unix"

// platformIdentity returns the Linux fsuid/fsgid syscall surface.
//
// setfsuid(2) and setfsgid(2) return the previous id and cannot fail in a
// way the caller can observe; the error results from the wrappers are
// always nil for these calls and are discarded here.
func platformIdentity() sysIdentity {
	return sysIdentity{
		setFsUID: func(id uint32) uint32 {
			prev, _ := unix.SetfsuidRetUid(int(id))
			return uint32(prev)
		},
		setFsGID: func(id uint32) uint32 {
			prev, _ := unix.SetfsgidRetGid(int(id))
			return uint32(prev)
		},
		supported: true,
	}
}
