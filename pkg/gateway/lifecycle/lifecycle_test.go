package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLifecycle_Draining(t *testing.T) {
	var l Lifecycle
	if l.IsDraining() {
		t.Fatalf("new lifecycle should not be draining")
	}
	l.SetDraining(true)
	if !l.IsDraining() {
		t.Fatalf("expected draining")
	}

	var nilLifecycle *Lifecycle
	nilLifecycle.SetDraining(true)
	if nilLifecycle.IsDraining() || nilLifecycle.Sessions() != 0 {
		t.Fatalf("nil lifecycle must be inert")
	}
}

func TestLifecycle_RegisterUnregisterAndWait(t *testing.T) {
	var l Lifecycle
	u1 := l.Register("s1", SessionHandle{})
	u2 := l.Register("s2", SessionHandle{})
	if l.Sessions() != 2 {
		t.Fatalf("sessions=%d, want 2", l.Sessions())
	}

	u1()
	u1()
	if l.Sessions() != 1 {
		t.Fatalf("sessions=%d, want 1 after double unregister", l.Sessions())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if l.Wait(ctx) {
		t.Fatalf("Wait should time out while s2 is open")
	}

	u2()
	if !l.Wait(context.Background()) {
		t.Fatalf("Wait should return once every session unregistered")
	}
}

func TestLifecycle_ReRegisterReplaces(t *testing.T) {
	var l Lifecycle
	var first, second atomic.Int64
	unregisterOld := l.Register("s1", SessionHandle{Cancel: func() { first.Add(1) }})
	l.Register("s1", SessionHandle{Cancel: func() { second.Add(1) }})
	unregisterOld()

	if l.Sessions() != 1 {
		t.Fatalf("sessions=%d, want 1", l.Sessions())
	}
	l.CancelAll()
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("cancel calls=%d/%d, want 0/1", first.Load(), second.Load())
	}
}

func TestLifecycle_NotifyAndCancelAll(t *testing.T) {
	var l Lifecycle
	var notified, canceled atomic.Int64
	l.Register("s1", SessionHandle{
		Cancel: func() { canceled.Add(1) },
		Notify: func(code, message string) error {
			if code != "server_draining" {
				t.Errorf("code=%q", code)
			}
			notified.Add(1)
			return nil
		},
	})
	l.Register("s2", SessionHandle{
		Cancel: func() { canceled.Add(1) },
		Notify: func(string, string) error { notified.Add(1); return errors.New("socket closed") },
	})
	l.Register("s3", SessionHandle{})

	if sent := l.NotifyAll("server_draining", "shutting down"); sent != 2 {
		t.Fatalf("sent=%d, want 2", sent)
	}
	if n := l.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	if notified.Load() != 2 || canceled.Load() != 2 {
		t.Fatalf("notify/cancel=%d/%d", notified.Load(), canceled.Load())
	}
}
