// Package bridge owns the cross-context message channel between a plugin
// window and its embedding host.
//
// Ownership boundary:
// - envelope wire shape and data coercion
// - Window/Parent contracts consumed by the plugin client
// - in-process Loopback window for embedding and tests
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	ActionCheckPermission = "checkPermission"

	// HostFlagHeader is set on a host's bridge upgrade response.
	HostFlagHeader = "X-Uoma-Host"

	responseActionSep = ":"
)

var ErrInvalidEnvelope = errors.New("bridge: invalid envelope")

// Envelope is the JSON message exchanged across the channel.
type Envelope struct {
	Action string          `json:"action"`
	ID     string          `json:"id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Action) == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidEnvelope)
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return fmt.Errorf("%w: data is not json", ErrInvalidEnvelope)
	}
	return nil
}

// NewEnvelope marshals data into an envelope.
func NewEnvelope(action, id string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Action: action, ID: id, Data: raw}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// CheckPermissionRequest is the plugin->host capability query.
func CheckPermissionRequest(pluginID, capability string) (Envelope, error) {
	return NewEnvelope(ActionCheckPermission, pluginID, capability)
}

// CheckPermissionResponse is the host->plugin answer for one capability.
func CheckPermissionResponse(capability string, granted bool) (Envelope, error) {
	return NewEnvelope(CheckPermissionResponseAction(capability), "", granted)
}

// CheckPermissionResponseAction is the action string a response carries.
func CheckPermissionResponseAction(capability string) string {
	return ActionCheckPermission + responseActionSep + capability
}

// RequestedCapability decodes the capability named by a request envelope.
func (e Envelope) RequestedCapability() (string, error) {
	if e.Action != ActionCheckPermission {
		return "", fmt.Errorf("%w: action %q is not %s", ErrInvalidEnvelope, e.Action, ActionCheckPermission)
	}
	var capability string
	if err := json.Unmarshal(e.Data, &capability); err != nil {
		return "", fmt.Errorf("%w: data is not a capability string", ErrInvalidEnvelope)
	}
	return capability, nil
}

// Truthy coerces Data the way a script host would coerce it to boolean:
// absent, null, false, 0, NaN and "" are false, everything else is true.
func (e Envelope) Truthy() bool {
	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case string:
		return val != ""
	default:
		return true
	}
}
