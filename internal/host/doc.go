// Package host is a development host for plugin windows.
//
// Ownership boundary:
// - capability grant policy (defaults, per-plugin grants and denies)
// - /bridge websocket endpoint answering checkPermission requests
// - health, catalog, grants and metrics HTTP routes
//
// It stands in for the embedding page; real hosts apply their own policy.
package host
