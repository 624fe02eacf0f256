package bridge

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/uom-assistant/uoma-plugin-sdk/internal/testutil/testlog"
)

func TestCheckPermissionRequestShape(t *testing.T) {
	testlog.Start(t)
	env, err := CheckPermissionRequest("plugin-abcd", "clock/timezone:read")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"action":"checkPermission","id":"plugin-abcd","data":"clock/timezone:read"}`
	if string(raw) != want {
		t.Fatalf("wire shape mismatch\n got=%s\nwant=%s", raw, want)
	}
	capability, err := env.RequestedCapability()
	if err != nil || capability != "clock/timezone:read" {
		t.Fatalf("requested capability=(%q,%v)", capability, err)
	}
}

func TestCheckPermissionResponseAction(t *testing.T) {
	testlog.Start(t)
	env, err := CheckPermissionResponse("todo/list:read", true)
	if err != nil {
		t.Fatalf("response: %v", err)
	}
	if env.Action != "checkPermission:todo/list:read" {
		t.Fatalf("unexpected action %q", env.Action)
	}
	if !env.Truthy() {
		t.Fatalf("granted response should be truthy")
	}
	if _, err := env.RequestedCapability(); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("response is not a request, got %v", err)
	}
}

func TestEnvelopeTruthy(t *testing.T) {
	tests := []struct {
		data string
		want bool
	}{
		{data: "", want: false},
		{data: "null", want: false},
		{data: "false", want: false},
		{data: "0", want: false},
		{data: `""`, want: false},
		{data: "true", want: true},
		{data: "1", want: true},
		{data: "-0.5", want: true},
		{data: `"no"`, want: true},
		{data: "{}", want: true},
		{data: "[]", want: true},
	}
	for _, tc := range tests {
		env := Envelope{Action: "x", Data: json.RawMessage(tc.data)}
		if got := env.Truthy(); got != tc.want {
			t.Fatalf("Truthy(%s)=%v want %v", tc.data, got, tc.want)
		}
	}
}

func TestEnvelopeValidate(t *testing.T) {
	if err := (Envelope{}).Validate(); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("missing action should fail, got %v", err)
	}
	if err := (Envelope{Action: "a", Data: json.RawMessage("{")}).Validate(); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("bad json should fail, got %v", err)
	}
}

func TestListenerSetRemoveIsIdempotent(t *testing.T) {
	testlog.Start(t)
	var set ListenerSet[int]
	var got []int
	removeA := set.Add(func(v int) { got = append(got, v) })
	set.Add(func(v int) { got = append(got, v*10) })

	set.Emit(1)
	removeA()
	removeA()
	set.Emit(2)

	if set.Len() != 1 {
		t.Fatalf("expected one listener, got %d", set.Len())
	}
	want := []int{1, 10, 20}
	if len(got) != len(want) {
		t.Fatalf("unexpected calls %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected calls %v", got)
		}
	}
}

func TestLoopbackPostMessageOriginFilter(t *testing.T) {
	testlog.Start(t)
	lb := NewLoopback(LoopbackConfig{Origin: "https://assistant.example", HostFlag: true})
	parent, ok := lb.Parent()
	if !ok {
		t.Fatalf("expected embedded loopback")
	}
	env, _ := CheckPermissionRequest("plugin-abcd", "theme/read")
	if err := parent.PostMessage(env, "https://evil.example"); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(lb.Sent()) != 0 {
		t.Fatalf("cross-origin post should be dropped")
	}
	if err := parent.PostMessage(env, lb.Origin()); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(lb.Sent()) != 1 {
		t.Fatalf("same-origin post should be accepted")
	}
}

func TestLoopbackTopLevelAndHostFlag(t *testing.T) {
	testlog.Start(t)
	top := NewLoopback(LoopbackConfig{Origin: "https://a", TopLevel: true})
	if _, ok := top.Parent(); ok {
		t.Fatalf("top-level loopback must not expose a parent")
	}

	flagErr := errors.New("cross-origin frame")
	lb := NewLoopback(LoopbackConfig{Origin: "https://a", HostFlag: true, HostFlagErr: flagErr})
	parent, _ := lb.Parent()
	if ok, err := parent.IsHost(); ok || !errors.Is(err, flagErr) {
		t.Fatalf("IsHost=(%v,%v)", ok, err)
	}
}

func TestGrantResponderRepliesThroughListeners(t *testing.T) {
	testlog.Start(t)
	lb := NewLoopback(LoopbackConfig{
		Origin:   "https://a",
		HostFlag: true,
		Responder: GrantResponder(func(pluginID, capability string) bool {
			return pluginID == "plugin-abcd" && capability == "todo/list:read"
		}),
	})
	var got []Message
	remove := lb.AddMessageListener(func(m Message) { got = append(got, m) })
	defer remove()

	parent, _ := lb.Parent()
	env, _ := CheckPermissionRequest("plugin-abcd", "todo/list:read")
	if err := parent.PostMessage(env, lb.Origin()); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one reply, got %d", len(got))
	}
	if got[0].Source != LoopbackParentSource || got[0].Envelope.Action != "checkPermission:todo/list:read" || !got[0].Envelope.Truthy() {
		t.Fatalf("unexpected reply %+v", got[0])
	}
}
