// Package hotplug implements the runtime half of device discovery: the
// interrupt-to-worker handoff queue and the worker that re-enumerates
// buses and publishes ordered add/remove/change events.
//
// # Concurrency boundary
//
//	interrupt / poller ──Notify──▶ Queue (per-family pending bits)
//	                                  │ wake
//	                                  ▼
//	                      worker goroutine (Run)
//	                          │ SyncFamily per pending family
//	                          ▼
//	                      listeners, in order: removals, additions, changes
//
// The producer side never blocks and never allocates; a burst of N
// physical changes on one bus collapses into one pending bit and one
// re-enumeration, which reflects current hardware state by construction.
package hotplug
