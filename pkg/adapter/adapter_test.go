package adapter

import (
	"testing"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(op *OperationContext) error {
				trace = append(trace, name+":before")
				err := next(op)
				trace = append(trace, name+":after")
				return err
			}
		}
	}

	h := Chain(func(op *OperationContext) error {
		trace = append(trace, "handler")
		return nil
	}, mw("outer"), mw("inner"))

	if err := h(&OperationContext{}); err != nil {
		t.Fatalf("chain failed: %v", err)
	}

	want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
	if len(trace) != len(want) {
		t.Fatalf("expected %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], trace[i])
		}
	}
}

func TestChainEmpty(t *testing.T) {
	ran := false
	h := Chain(func(op *OperationContext) error {
		ran = true
		return nil
	})
	if err := h(&OperationContext{}); err != nil {
		t.Fatalf("chain failed: %v", err)
	}
	if !ran {
		t.Error("handler never ran")
	}
}

func TestUnixIdentityWithoutUser(t *testing.T) {
	op := &OperationContext{}
	if _, _, ok := op.UnixIdentity(); ok {
		t.Error("expected no identity for request without a principal")
	}
}
