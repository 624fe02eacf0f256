package plugin

import "errors"

var (
	ErrNotInitialized   = errors.New("plugin: not initialized")
	ErrInvalidArgument  = errors.New("plugin: invalid argument")
	ErrUnknownEvent     = errors.New("plugin: unknown event")
	ErrPermissionDenied = errors.New("plugin: permission denied")
	ErrTimeout          = errors.New("plugin: permission check timeout")
	ErrNotFound         = errors.New("plugin: callback not found")
)
