// Package impersonate switches the process's filesystem-check identity
// (fsuid/fsgid) to an authenticated user's Unix identity for the duration of a
// single operation, and restores it afterwards.
//
// Only the filesystem-check identity is touched. The process's real and
// effective uid/gid are never changed, so everything else the server does
// keeps running under its own identity.
//
// The switched identity is shared mutable process state: two operations
// holding different identities at the same time would corrupt each other.
// The Switcher therefore serializes the entire switch/execute/restore
// sequence behind a single process-wide slot. Only one bracketed operation
// runs at a time; the rest block in Acquire until the slot frees up. This is
// an intentional backpressure point.
//
// The underlying syscalls have an awkward contract: they return the previous
// id unconditionally and never report failure, even for ids the kernel
// rejected. See applyID for the verification protocol that works around this.
package impersonate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/driftlab/driftfs/internal/logger"
)

// sentinelID is an id that is never valid as a real identity. Passing it to
// the syscalls is used purely as a probe: the call reports the currently
// active id as its "previous" return value without (on a correct kernel)
// changing anything.
const sentinelID = ^uint32(0)

var (
	// ErrSwitchFailed indicates that a requested identity change was not
	// actually applied by the kernel. The protected operation must not run.
	ErrSwitchFailed = errors.New("impersonate: identity switch not applied")

	// ErrUnsupported is returned on platforms without a filesystem-check
	// identity (everything except Linux).
	ErrUnsupported = errors.New("impersonate: not supported on this platform")
)

// Metrics collects impersonation counters. Implementations must be safe for
// concurrent use. A nil Metrics disables collection with zero overhead.
type Metrics interface {
	// SwitchApplied records a successful identity switch.
	SwitchApplied()

	// SwitchFailed records a failed identity switch (verification mismatch).
	SwitchFailed()

	// RestoreFailed records a failed identity restore during guard release.
	RestoreFailed()

	// SlotWaitDuration records how long an operation waited for the
	// process-wide identity slot.
	SlotWaitDuration(d time.Duration)
}

// sysIdentity is the syscall surface for one platform. Tests substitute
// fakes to simulate kernel behavior, including the documented defects.
type sysIdentity struct {
	// setFsUID sets the filesystem user id and returns the previous one.
	setFsUID func(uint32) uint32

	// setFsGID sets the filesystem group id and returns the previous one.
	setFsGID func(uint32) uint32

	// supported is false on platforms without fsuid/fsgid.
	supported bool
}

// Switcher owns the process-wide identity slot and performs verified
// identity changes. A single Switcher should be shared by all operations
// in the process; constructing more than one defeats the serialization.
type Switcher struct {
	slot    chan struct{}
	sys     sysIdentity
	log     *slog.Logger
	metrics Metrics
}

// Option configures a Switcher.
type Option func(*Switcher)

// WithLogger sets the diagnostics sink. Defaults to the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Switcher) { s.log = l }
}

// WithMetrics sets the metrics collector. Defaults to none.
func WithMetrics(m Metrics) Option {
	return func(s *Switcher) { s.metrics = m }
}

// WithSyscalls replaces the platform syscalls. Each function must set its id
// and return the previous one, mirroring the kernel contract. Intended for
// tests that simulate kernel behavior.
func WithSyscalls(setFsUID, setFsGID func(uint32) uint32) Option {
	return func(s *Switcher) {
		s.sys = sysIdentity{
			setFsUID:  setFsUID,
			setFsGID:  setFsGID,
			supported: true,
		}
	}
}

// NewSwitcher creates a Switcher bound to the platform syscalls.
func NewSwitcher(opts ...Option) *Switcher {
	s := &Switcher{
		slot: make(chan struct{}, 1),
		sys:  platformIdentity(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.With(logger.KeyComponent, "impersonate")
	}
	return s
}

// Guard holds the identity state captured when a switch was made. Releasing
// the guard restores the previous identity and frees the process-wide slot.
// Guards must be released in reverse order of acquisition; the capacity-1
// slot makes any other order impossible in practice.
type Guard struct {
	s        *Switcher
	prevUID  uint32
	prevGID  uint32
	switched bool
	released bool
}

// Acquire takes the process-wide identity slot and switches the filesystem
// identity to (uid, gid). Blocks until the slot is free or ctx is done.
//
// On success the caller must Release the returned guard, typically via
// defer, so that restoration runs on every exit path. On failure the slot
// is freed before returning and no guard exists.
func (s *Switcher) Acquire(ctx context.Context, uid, gid uint32) (*Guard, error) {
	if !s.sys.supported {
		return nil, ErrUnsupported
	}

	waitStart := time.Now()
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.metrics != nil {
		s.metrics.SlotWaitDuration(time.Since(waitStart))
	}

	// The filesystem identity is per-thread kernel state. Pin the goroutine
	// to its thread so the protected action cannot migrate to a thread that
	// still has the server's own identity.
	runtime.LockOSThread()

	g, err := s.acquire(uid, gid)
	if err != nil {
		runtime.UnlockOSThread()
		<-s.slot
		if s.metrics != nil {
			s.metrics.SwitchFailed()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SwitchApplied()
	}
	return g, nil
}

// acquire performs the ordered identity change. The group id moves first:
// changing the user id first would open a window where the process carries
// the target user id alongside the server's own group id.
func (s *Switcher) acquire(uid, gid uint32) (*Guard, error) {
	prevGID, err := s.applyID("fsgid", s.sys.setFsGID, gid)
	if err != nil {
		return nil, err
	}

	prevUID, err := s.applyID("fsuid", s.sys.setFsUID, uid)
	if err != nil {
		// Undo the group change before surfacing the error so the caller
		// never observes a half-switched identity.
		s.sys.setFsGID(prevGID)
		return nil, err
	}

	switched := prevUID != uid || prevGID != gid
	if switched {
		s.log.Debug("filesystem identity switched",
			logger.KeyFsUID, uid,
			logger.KeyFsGID, gid,
			logger.KeyPrevUID, prevUID,
			logger.KeyPrevGID, prevGID)
	}

	return &Guard{
		s:        s,
		prevUID:  prevUID,
		prevGID:  prevGID,
		switched: switched,
	}, nil
}

// applyID performs one verified identity change and returns the prior id.
//
// The syscall returns the previous id unconditionally and has no error
// channel, so a rejected id looks exactly like a successful change. The
// workaround: after changing, probe with the invalid sentinel id and check
// that the "previous" value it reports equals the id just requested. A
// mismatch means the change silently failed; the prior id is put back and
// ErrSwitchFailed is returned.
//
// Some kernels additionally accept the sentinel as if it were a real id,
// which would leave the probe value active. The target is therefore
// reasserted after every successful probe.
func (s *Switcher) applyID(kind string, set func(uint32) uint32, target uint32) (uint32, error) {
	prev := set(target)
	if prev == target {
		// Already the active id; nothing changed, nothing to verify.
		return prev, nil
	}

	cur := set(sentinelID)
	if cur != target {
		set(prev)
		return 0, fmt.Errorf("%s change to %d not applied (kernel reports %d): %w",
			kind, target, cur, ErrSwitchFailed)
	}

	set(target)
	return prev, nil
}

// Release restores the identity held before Acquire and frees the
// process-wide slot. Safe to call more than once; only the first call has
// effect. Restore failures are logged and counted but never returned:
// Release runs on unwind paths where a surfaced error would mask the
// operation's own result.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true

	defer func() {
		runtime.UnlockOSThread()
		<-g.s.slot
	}()

	if !g.switched {
		return
	}

	// Restore runs in LIFO order: the user id changed last, so it goes back
	// first. The group id follows. At no point does the restored user id
	// coexist with a not-yet-restored group id longer than necessary, and
	// the same verified-change primitive guards both steps.
	if _, err := g.s.applyID("fsuid", g.s.sys.setFsUID, g.prevUID); err != nil {
		g.s.log.Warn("failed to restore filesystem user id",
			logger.KeyPrevUID, g.prevUID,
			logger.KeyError, err.Error())
		if g.s.metrics != nil {
			g.s.metrics.RestoreFailed()
		}
	}
	if _, err := g.s.applyID("fsgid", g.s.sys.setFsGID, g.prevGID); err != nil {
		g.s.log.Warn("failed to restore filesystem group id",
			logger.KeyPrevGID, g.prevGID,
			logger.KeyError, err.Error())
		if g.s.metrics != nil {
			g.s.metrics.RestoreFailed()
		}
	}
}

// WithIdentity runs fn with the filesystem identity switched to (uid, gid),
// restoring the previous identity on every exit path, including panics and
// context cancellation of the work inside fn.
//
// If the switch cannot be acquired or verified, fn never runs and the error
// is returned. Errors from fn pass through unchanged.
func (s *Switcher) WithIdentity(ctx context.Context, uid, gid uint32, fn func() error) error {
	g, err := s.Acquire(ctx, uid, gid)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn()
}
