// Package catalog owns the static capability and event tables.
//
// Ownership boundary:
// - capability names ("namespace/leaf")
// - event names ("namespace@event") and their required capability
//
// The tables are read from the embedded definitions.yaml once at package
// init and never change afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CapabilitySeparator = "/"
	EventSeparator      = "@"
)

//go:embed definitions.yaml
var definitionsYAML []byte

type definitions struct {
	Capabilities map[string][]string          `yaml:"capabilities"`
	Events       map[string]map[string]string `yaml:"events"`
}

type tables struct {
	capabilities map[string]map[string]struct{}
	events       map[string]map[string]string
}

var defs = mustLoad(definitionsYAML)

func mustLoad(raw []byte) tables {
	t, err := load(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func load(raw []byte) (tables, error) {
	var d definitions
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return tables{}, fmt.Errorf("catalog: parse definitions: %w", err)
	}
	if len(d.Capabilities) == 0 {
		return tables{}, fmt.Errorf("catalog: no capabilities defined")
	}

	t := tables{
		capabilities: make(map[string]map[string]struct{}, len(d.Capabilities)),
		events:       make(map[string]map[string]string, len(d.Events)),
	}
	for ns, leaves := range d.Capabilities {
		if !validSegment(ns, CapabilitySeparator) {
			return tables{}, fmt.Errorf("catalog: invalid capability namespace %q", ns)
		}
		set := make(map[string]struct{}, len(leaves))
		for _, leaf := range leaves {
			if !validSegment(leaf, CapabilitySeparator) {
				return tables{}, fmt.Errorf("catalog: invalid capability %q in namespace %q", leaf, ns)
			}
			set[leaf] = struct{}{}
		}
		t.capabilities[ns] = set
	}
	for ns, events := range d.Events {
		if !validSegment(ns, EventSeparator) {
			return tables{}, fmt.Errorf("catalog: invalid event namespace %q", ns)
		}
		byName := make(map[string]string, len(events))
		for name, required := range events {
			if !validSegment(name, EventSeparator) {
				return tables{}, fmt.Errorf("catalog: invalid event %q in namespace %q", name, ns)
			}
			if !t.hasCapability(required) {
				return tables{}, fmt.Errorf("catalog: event %s%s%s requires unknown capability %q", ns, EventSeparator, name, required)
			}
			byName[name] = required
		}
		t.events[ns] = byName
	}
	return t, nil
}

// IsValidCapability reports whether name is "namespace/leaf" with both
// segments listed in the capability table.
func IsValidCapability(name string) bool {
	return defs.hasCapability(name)
}

// RequiredCapabilityFor resolves the capability gating an event name.
func RequiredCapabilityFor(event string) (string, bool) {
	return defs.requiredCapability(event)
}

// IsValidEvent reports whether event is a known "namespace@event" name.
func IsValidEvent(event string) bool {
	_, ok := defs.requiredCapability(event)
	return ok
}

// Namespaces returns the sorted capability namespaces.
func Namespaces() []string {
	out := make([]string, 0, len(defs.capabilities))
	for ns := range defs.capabilities {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Capabilities returns the sorted full capability names of one namespace.
func Capabilities(namespace string) []string {
	leaves, ok := defs.capabilities[namespace]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(leaves))
	for leaf := range leaves {
		out = append(out, namespace+CapabilitySeparator+leaf)
	}
	sort.Strings(out)
	return out
}

// EventNames returns every known event name, sorted.
func EventNames() []string {
	var out []string
	for ns, events := range defs.events {
		for name := range events {
			out = append(out, ns+EventSeparator+name)
		}
	}
	sort.Strings(out)
	return out
}

func (t tables) hasCapability(name string) bool {
	ns, leaf, ok := split(name, CapabilitySeparator)
	if !ok {
		return false
	}
	leaves, ok := t.capabilities[ns]
	if !ok {
		return false
	}
	_, ok = leaves[leaf]
	return ok
}

func (t tables) requiredCapability(event string) (string, bool) {
	ns, name, ok := split(event, EventSeparator)
	if !ok {
		return "", false
	}
	events, ok := t.events[ns]
	if !ok {
		return "", false
	}
	required, ok := events[name]
	return required, ok
}

// split requires exactly two non-empty segments.
func split(name, sep string) (string, string, bool) {
	parts := strings.Split(name, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func validSegment(s, sep string) bool {
	return s != "" && !strings.Contains(s, sep)
}
