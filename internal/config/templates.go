package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		return hostTemplate, nil
	case "grants":
		return grantsTemplate, nil
	case "plugin":
		return pluginTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hostTemplate = `id = "uoma-host"
addr = ":7300"
grants_path = "grants.toml"
origin_patterns = ["localhost:*"]
cors_origins = ["http://localhost:3000"]
token = ""
tls_cert_file = ""
tls_key_file = ""
shutdown_timeout = "5s"
`

const grantsTemplate = `default = ["clock/timezone:read", "theme/read"]

[[plugins]]
id = "plugin-abcd"
grants = ["todo/list:read", "course/timetable:read"]
deny = []

[[plugins]]
id = "plugin-weather"
grants = ["weather/current:read", "weather/forecast:read"]
deny = ["theme/read"]
`

const pluginTemplate = `id = "plugin-abcd"
url = "ws://localhost:7300/bridge"
origin = ""
token = ""
ca_file = ""
check_timeout = "1s"
max_connect_attempts = 5
`
