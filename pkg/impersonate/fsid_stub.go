//go:build !linux

package impersonate

// platformIdentity returns a stub surface on platforms without a
// filesystem-check identity. Acquire fails with ErrUnsupported before any
// of these functions can run.
func platformIdentity() sysIdentity {
	return sysIdentity{
		setFsUID:  func(id uint32) uint32 { return id },
		setFsGID:  func(id uint32) uint32 { return id },
		supported: false,
	}
}
