package catalog

import (
	"strings"
	"testing"
)

func TestIsValidCapability(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "known", in: "clock/timezone:read", want: true},
		{name: "known single leaf", in: "theme/read", want: true},
		{name: "no separator", in: "bogus", want: false},
		{name: "empty", in: "", want: false},
		{name: "three segments", in: "clock/timezone/read", want: false},
		{name: "empty namespace", in: "/timezone:read", want: false},
		{name: "empty leaf", in: "clock/", want: false},
		{name: "unknown namespace", in: "radio/timezone:read", want: false},
		{name: "unknown leaf", in: "clock/timezone:write", want: false},
		{name: "event shape", in: "todo@done", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidCapability(tc.in); got != tc.want {
				t.Fatalf("IsValidCapability(%q)=%v want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestEveryListedCapabilityIsValid(t *testing.T) {
	for _, ns := range Namespaces() {
		caps := Capabilities(ns)
		if len(caps) == 0 {
			t.Fatalf("namespace %q has no capabilities", ns)
		}
		for _, name := range caps {
			if !IsValidCapability(name) {
				t.Fatalf("listed capability %q reported invalid", name)
			}
		}
	}
}

func TestRequiredCapabilityFor(t *testing.T) {
	got, ok := RequiredCapabilityFor("todo@done")
	if !ok || got != "todo/list:read" {
		t.Fatalf("todo@done resolved to (%q,%v)", got, ok)
	}

	for _, bad := range []string{"", "todo", "todo@", "@done", "todo@done@x", "todo/done", "todo@nope", "radio@done"} {
		if got, ok := RequiredCapabilityFor(bad); ok {
			t.Fatalf("RequiredCapabilityFor(%q) unexpectedly resolved to %q", bad, got)
		}
		if IsValidEvent(bad) {
			t.Fatalf("IsValidEvent(%q) should be false", bad)
		}
	}
}

func TestEveryEventRequiresValidCapability(t *testing.T) {
	names := EventNames()
	if len(names) == 0 {
		t.Fatalf("expected events in catalog")
	}
	for _, event := range names {
		required, ok := RequiredCapabilityFor(event)
		if !ok {
			t.Fatalf("listed event %q did not resolve", event)
		}
		if !IsValidCapability(required) {
			t.Fatalf("event %q requires invalid capability %q", event, required)
		}
	}
}

func TestLoadRejectsBrokenDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "not yaml", raw: "capabilities: [", wantErr: "parse definitions"},
		{name: "empty", raw: "events: {}", wantErr: "no capabilities"},
		{
			name:    "separator in leaf",
			raw:     "capabilities:\n  clock:\n    - a/b\n",
			wantErr: "invalid capability",
		},
		{
			name:    "dangling event",
			raw:     "capabilities:\n  clock:\n    - time:read\nevents:\n  clock:\n    tick: clock/tick:read\n",
			wantErr: "requires unknown capability",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load([]byte(tc.raw))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
