package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uom-assistant/uoma-plugin-sdk/internal/testutil/testlog"
)

func noop(Notification) {}

func TestOnSucceedsWhenRequiredCapabilityGranted(t *testing.T) {
	testlog.Start(t)
	c, lb := newSession(t, allowOnly("todo/list:read"), DefaultConfig())
	cb := NewCallback(noop)

	if err := c.On(context.Background(), "todo@done", cb); err != nil {
		t.Fatalf("on: %v", err)
	}
	subs := c.Subscribers("todo@done")
	if len(subs) != 1 || subs[0] != cb {
		t.Fatalf("unexpected subscribers %v", subs)
	}
	sent := lb.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one capability check, got %d", len(sent))
	}
	if capability, _ := sent[0].RequestedCapability(); capability != "todo/list:read" {
		t.Fatalf("checked wrong capability %q", capability)
	}
}

func TestOnDeniedLeavesRegistryUntouched(t *testing.T) {
	testlog.Start(t)
	c, _ := newSession(t, allowOnly("clock/timezone:read"), DefaultConfig())

	err := c.On(context.Background(), "todo@done", NewCallback(noop))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if !strings.Contains(err.Error(), "todo/list:read") {
		t.Fatalf("denial should name the capability: %v", err)
	}
	if c.HasEntry("todo@done") {
		t.Fatalf("denied subscribe must not create an entry")
	}
}

func TestOnPropagatesTimeout(t *testing.T) {
	testlog.Start(t)
	c, lb := newSession(t, nil, Config{CheckTimeout: 20 * time.Millisecond})

	err := c.On(context.Background(), "clock@timezoneChange", NewCallback(noop))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if c.HasEntry("clock@timezoneChange") {
		t.Fatalf("timed out subscribe must not create an entry")
	}
	if lb.MessageListenerCount() != 0 {
		t.Fatalf("listener leaked")
	}
}

func TestDuplicateRegistrationRemovedOneAtATime(t *testing.T) {
	testlog.Start(t)
	c, _ := newSession(t, allowOnly("todo/list:read"), DefaultConfig())
	cb := NewCallback(noop)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.On(ctx, "todo@done", cb); err != nil {
			t.Fatalf("on #%d: %v", i, err)
		}
	}
	if n := len(c.Subscribers("todo@done")); n != 2 {
		t.Fatalf("expected two slots, got %d", n)
	}

	removed, err := c.Off("todo@done", cb)
	if err != nil || removed != cb {
		t.Fatalf("first off: (%v,%v)", removed, err)
	}
	if n := len(c.Subscribers("todo@done")); n != 1 {
		t.Fatalf("expected one slot after first off, got %d", n)
	}
	if _, err := c.Off("todo@done", cb); err != nil {
		t.Fatalf("second off should remove the second occurrence: %v", err)
	}
	if _, err := c.Off("todo@done", cb); !errors.Is(err, ErrNotFound) {
		t.Fatalf("third off: want NotFound, got %v", err)
	}
	if !c.HasEntry("todo@done") {
		t.Fatalf("emptied entry must be retained")
	}
}

func TestOffWithoutOnIsNotFound(t *testing.T) {
	testlog.Start(t)
	c, lb := newSession(t, allowOnly("todo/list:read"), DefaultConfig())
	if _, err := c.Off("todo@add", NewCallback(noop)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	if err := c.On(context.Background(), "todo@add", NewCallback(noop)); err != nil {
		t.Fatalf("on: %v", err)
	}
	if _, err := c.Off("todo@add", NewCallback(noop)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unregistered handle: want NotFound, got %v", err)
	}
	if n := len(lb.Sent()); n != 1 {
		t.Fatalf("off must not consult the host, sent=%d", n)
	}
}

func TestSubscriptionPreconditionOrder(t *testing.T) {
	testlog.Start(t)
	lb := newLoopback(allowOnly("todo/list:read"))
	c := New(lb, DefaultConfig())
	ctx := context.Background()

	if err := c.On(ctx, "nope", nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("before init: want NotInitialized, got %v", err)
	}
	if _, err := c.Off("nope", nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("before init: want NotInitialized, got %v", err)
	}
	if ok, _ := c.Init("plugin-abcd"); !ok {
		t.Fatalf("init failed")
	}

	tests := []struct {
		name    string
		event   string
		cb      *Callback
		wantErr error
	}{
		{name: "nil handle", event: "nope", cb: nil, wantErr: ErrInvalidArgument},
		{name: "nil func", event: "todo@done", cb: NewCallback(nil), wantErr: ErrInvalidArgument},
		{name: "malformed event", event: "todo/done", cb: NewCallback(noop), wantErr: ErrUnknownEvent},
		{name: "unknown namespace", event: "radio@on", cb: NewCallback(noop), wantErr: ErrUnknownEvent},
		{name: "unknown leaf", event: "todo@archive", cb: NewCallback(noop), wantErr: ErrUnknownEvent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := c.On(ctx, tc.event, tc.cb); !errors.Is(err, tc.wantErr) {
				t.Fatalf("On: want %v, got %v", tc.wantErr, err)
			}
			if _, err := c.Off(tc.event, tc.cb); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Off: want %v, got %v", tc.wantErr, err)
			}
		})
	}
	if len(lb.Sent()) != 0 {
		t.Fatalf("precondition failures must not reach the host")
	}
}

func TestSubscribersPreserveInsertionOrder(t *testing.T) {
	testlog.Start(t)
	c, _ := newSession(t, allowOnly("course/timetable:read"), DefaultConfig())
	var calls []string
	first := NewCallback(func(n Notification) { calls = append(calls, "first:"+n.Event) })
	second := NewCallback(func(n Notification) { calls = append(calls, "second:"+n.Event) })

	for _, cb := range []*Callback{first, second} {
		if err := c.On(context.Background(), "course@timetableUpdate", cb); err != nil {
			t.Fatalf("on: %v", err)
		}
	}
	for _, cb := range c.Subscribers("course@timetableUpdate") {
		cb.Invoke(Notification{Event: "course@timetableUpdate"})
	}
	if len(calls) != 2 || calls[0] != "first:course@timetableUpdate" || calls[1] != "second:course@timetableUpdate" {
		t.Fatalf("unexpected dispatch order %v", calls)
	}
	if c.Subscribers("course@gradeRelease") != nil {
		t.Fatalf("never-subscribed event should have no snapshot")
	}
	var nilCB *Callback
	nilCB.Invoke(Notification{})
}
