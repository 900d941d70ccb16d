package impersonate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeKernel simulates the fsuid/fsgid syscall contract: every call returns
// the previous id, rejected ids change nothing, and no call ever reports an
// error. The accept function decides which ids the kernel takes; nil accepts
// everything. acceptsSentinel models kernels that apply the probe id as if
// it were a real identity.
type fakeKernel struct {
	mu              sync.Mutex
	uid, gid        uint32
	accept          func(kind string, id uint32) bool
	acceptsSentinel bool
	calls           []string
}

func (k *fakeKernel) set(kind string, cur *uint32, id uint32) uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.calls = append(k.calls, fmt.Sprintf("%s:%d", kind, id))
	prev := *cur
	if id == sentinelID && !k.acceptsSentinel {
		return prev
	}
	if k.accept != nil && id != sentinelID && !k.accept(kind, id) {
		return prev
	}
	*cur = id
	return prev
}

func (k *fakeKernel) identity() (uint32, uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.uid, k.gid
}

func (k *fakeKernel) callLog() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.calls...)
}

func newTestSwitcher(t *testing.T, k *fakeKernel, opts ...Option) *Switcher {
	t.Helper()

	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSyscalls(
			func(id uint32) uint32 { return k.set("uid", &k.uid, id) },
			func(id uint32) uint32 { return k.set("gid", &k.gid, id) },
		),
	}, opts...)
	return NewSwitcher(opts...)
}

type countingMetrics struct {
	applied, failed, restoreFailed atomic.Int64
}

func (m *countingMetrics) SwitchApplied()                 { m.applied.Add(1) }
func (m *countingMetrics) SwitchFailed()                  { m.failed.Add(1) }
func (m *countingMetrics) RestoreFailed()                 { m.restoreFailed.Add(1) }
func (m *countingMetrics) SlotWaitDuration(time.Duration) {}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	k := &fakeKernel{uid: 0, gid: 0}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if uid, gid := k.identity(); uid != 1001 || gid != 2001 {
		t.Errorf("expected identity 1001/2001 while held, got %d/%d", uid, gid)
	}

	g.Release()

	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected identity restored to 0/0, got %d/%d", uid, gid)
	}
}

func TestChangeAndRestoreOrdering(t *testing.T) {
	k := &fakeKernel{uid: 0, gid: 0}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	g.Release()

	sentinel := fmt.Sprint(sentinelID)
	want := []string{
		// acquire: gid first, then uid, each verified and reasserted
		"gid:2001", "gid:" + sentinel, "gid:2001",
		"uid:1001", "uid:" + sentinel, "uid:1001",
		// release: uid goes back first, then gid
		"uid:0", "uid:" + sentinel, "uid:0",
		"gid:0", "gid:" + sentinel, "gid:0",
	}
	got := k.callLog()
	if len(got) != len(want) {
		t.Fatalf("expected %d syscalls, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("syscall %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestNoOpWhenIdentityAlreadyActive(t *testing.T) {
	k := &fakeKernel{uid: 1001, gid: 2001}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if g.switched {
		t.Error("expected no-op acquire to report no switch")
	}
	g.Release()

	// One call per id to observe the previous value; no probes, no restore.
	if got := k.callLog(); len(got) != 2 {
		t.Errorf("expected 2 syscalls for a no-op bracket, got %v", got)
	}
}

func TestUIDFailureRollsBackGID(t *testing.T) {
	k := &fakeKernel{uid: 0, gid: 0, accept: func(kind string, id uint32) bool {
		return kind != "uid" || id == 0
	}}
	m := &countingMetrics{}
	s := newTestSwitcher(t, k, WithMetrics(m))

	_, err := s.Acquire(context.Background(), 1001, 2001)
	if !errors.Is(err, ErrSwitchFailed) {
		t.Fatalf("expected ErrSwitchFailed, got %v", err)
	}

	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected full rollback to 0/0, got %d/%d", uid, gid)
	}
	if m.failed.Load() != 1 {
		t.Errorf("expected 1 failed switch, got %d", m.failed.Load())
	}

	// The slot must be free again after a failed acquire.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g, err := s.Acquire(ctx, 0, 0)
	if err != nil {
		t.Fatalf("slot not released after failed acquire: %v", err)
	}
	g.Release()
}

func TestGIDFailureStopsBeforeUID(t *testing.T) {
	k := &fakeKernel{uid: 0, gid: 0, accept: func(kind string, id uint32) bool {
		return kind != "gid" || id == 0
	}}
	s := newTestSwitcher(t, k)

	_, err := s.Acquire(context.Background(), 1001, 2001)
	if !errors.Is(err, ErrSwitchFailed) {
		t.Fatalf("expected ErrSwitchFailed, got %v", err)
	}

	for _, call := range k.callLog() {
		if call == "uid:1001" {
			t.Error("uid change attempted after gid change failed")
		}
	}
}

func TestSentinelAcceptingKernel(t *testing.T) {
	k := &fakeKernel{uid: 0, gid: 0, acceptsSentinel: true}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// The probe was applied as a real id; the reassertion must have put the
	// target back so the sentinel is never the active identity.
	if uid, gid := k.identity(); uid != 1001 || gid != 2001 {
		t.Errorf("expected 1001/2001 despite sentinel-accepting kernel, got %d/%d", uid, gid)
	}

	g.Release()
	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected restore to 0/0, got %d/%d", uid, gid)
	}
}

func TestWithIdentityRunsUnderTarget(t *testing.T) {
	k := &fakeKernel{uid: 0, gid: 0}
	s := newTestSwitcher(t, k)

	ran := false
	err := s.WithIdentity(context.Background(), 1001, 2001, func() error {
		ran = true
		if uid, gid := k.identity(); uid != 1001 || gid != 2001 {
			t.Errorf("expected 1001/2001 inside fn, got %d/%d", uid, gid)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithIdentity failed: %v", err)
	}
	if !ran {
		t.Fatal("fn never ran")
	}
	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected restore after fn, got %d/%d", uid, gid)
	}
}

func TestWithIdentityPropagatesError(t *testing.T) {
	k := &fakeKernel{}
	s := newTestSwitcher(t, k)

	opErr := errors.New("operation failed")
	if err := s.WithIdentity(context.Background(), 1001, 2001, func() error {
		return opErr
	}); !errors.Is(err, opErr) {
		t.Errorf("expected operation error, got %v", err)
	}
	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected restore after error, got %d/%d", uid, gid)
	}
}

func TestWithIdentityRestoresOnPanic(t *testing.T) {
	k := &fakeKernel{}
	s := newTestSwitcher(t, k)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = s.WithIdentity(context.Background(), 1001, 2001, func() error {
			panic("boom")
		})
	}()

	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected restore after panic, got %d/%d", uid, gid)
	}

	// The slot must be usable again.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.WithIdentity(ctx, 0, 0, func() error { return nil }); err != nil {
		t.Errorf("slot not released after panic: %v", err)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	k := &fakeKernel{}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		g2, err := s.Acquire(context.Background(), 3001, 4001)
		if err != nil {
			t.Errorf("second Acquire failed: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		g2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire completed while slot was held")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestAcquireCancellation(t *testing.T) {
	k := &fakeKernel{}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx, 3001, 4001); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}

	if uid, gid := k.identity(); uid != 1001 || gid != 2001 {
		t.Errorf("cancelled waiter disturbed the held identity: %d/%d", uid, gid)
	}
}

func TestConcurrentBracketsSerialize(t *testing.T) {
	k := &fakeKernel{}
	s := newTestSwitcher(t, k)

	var inFlight, maxInFlight atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		uid := uint32(1000 + i)
		go func() {
			defer wg.Done()
			err := s.WithIdentity(context.Background(), uid, uid, func() error {
				n := inFlight.Add(1)
				for {
					cur := maxInFlight.Load()
					if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
						break
					}
				}
				if ku, kg := k.identity(); ku != uid || kg != uid {
					t.Errorf("expected own identity %d, got %d/%d", uid, ku, kg)
				}
				inFlight.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("WithIdentity failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Errorf("expected at most 1 bracket in flight, observed %d", maxInFlight.Load())
	}
	if uid, gid := k.identity(); uid != 0 || gid != 0 {
		t.Errorf("expected original identity after all brackets, got %d/%d", uid, gid)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	k := &fakeKernel{}
	s := newTestSwitcher(t, k)

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	g.Release()
	before := len(k.callLog())
	g.Release()
	if after := len(k.callLog()); after != before {
		t.Errorf("second Release performed %d extra syscalls", after-before)
	}
}

func TestRestoreFailureIsNotReturned(t *testing.T) {
	restoresAllowed := atomic.Bool{}
	restoresAllowed.Store(true)
	k := &fakeKernel{uid: 10, gid: 10}
	k.accept = func(kind string, id uint32) bool {
		if id == 10 {
			return restoresAllowed.Load()
		}
		return true
	}
	m := &countingMetrics{}
	s := newTestSwitcher(t, k, WithMetrics(m))

	g, err := s.Acquire(context.Background(), 1001, 2001)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Restoring the original ids now fails silently at the kernel level.
	restoresAllowed.Store(false)
	g.Release()

	if m.restoreFailed.Load() != 2 {
		t.Errorf("expected 2 restore failures recorded, got %d", m.restoreFailed.Load())
	}

	// Even after a failed restore the slot frees up for the next operation.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	g2, err := s.Acquire(ctx, 1001, 2001)
	if err != nil {
		t.Fatalf("slot not released after failed restore: %v", err)
	}
	g2.Release()
}

func TestUnsupportedPlatform(t *testing.T) {
	s := NewSwitcher(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.sys.supported = false

	if _, err := s.Acquire(context.Background(), 1001, 2001); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}
