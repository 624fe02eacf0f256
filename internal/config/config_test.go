package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uom-assistant/uoma-plugin-sdk/internal/testutil/testlog"
)

func TestGrantsTemplateLoadsAndResolves(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "grants.toml")
	if err := WriteTemplate(path, "grants", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "grants", false); err == nil {
		t.Fatalf("second write without overwrite should fail")
	}

	cfg, err := LoadGrantsConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := strings.Join(cfg.Effective("plugin-abcd"), ",")
	want := "clock/timezone:read,course/timetable:read,theme/read,todo/list:read"
	if got != want {
		t.Fatalf("effective grants\n got=%s\nwant=%s", got, want)
	}
	got = strings.Join(cfg.Effective("plugin-weather"), ",")
	want = "clock/timezone:read,weather/current:read,weather/forecast:read"
	if got != want {
		t.Fatalf("deny not applied\n got=%s\nwant=%s", got, want)
	}
	if got := strings.Join(cfg.Effective("plugin-other"), ","); got != "clock/timezone:read,theme/read" {
		t.Fatalf("unknown plugin should get defaults only, got %s", got)
	}
}

func TestParseGrantsConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "syntax", doc: "default = [", wantErr: "parse failed"},
		{name: "unknown default", doc: `default = ["clock/alarm:set"]`, wantErr: "default grants invalid"},
		{name: "short id", doc: "[[plugins]]\nid = \"abc\"\n", wantErr: "at least 4"},
		{name: "unknown grant", doc: "[[plugins]]\nid = \"plugin-a\"\ngrants = [\"bogus\"]\n", wantErr: "unknown capability"},
		{name: "duplicate", doc: "[[plugins]]\nid = \"plugin-a\"\n[[plugins]]\nid = \"plugin-a\"\n", wantErr: "duplicate id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGrantsConfig([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTemplatesAreValidToml(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, kind := range []string{"host", "grants", "plugin"} {
		path := filepath.Join(dir, kind+".toml")
		if err := WriteTemplate(path, kind, true); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
		if err := ValidateSyntax(path); err != nil {
			t.Fatalf("%s template: %v", kind, err)
		}
	}
	if _, err := Template("desktop"); err == nil {
		t.Fatalf("unknown kind should fail")
	}
	if err := ValidateSyntax(filepath.Join(dir, "missing.toml")); err == nil || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing file should fail with not-exist, got %v", err)
	}
}
