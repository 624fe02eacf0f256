// Package plugin is the plugin-side client of the host bridge.
//
// Ownership boundary:
// - session guard (Init) and session preconditions
// - capability checks over a bridge.Window (single request, one response, 1s deadline)
// - capability-gated event subscription bookkeeping
//
// Dispatch of host notifications into callbacks belongs to the caller; the
// client only keeps the ordered registration state (see Subscribers).
package plugin
