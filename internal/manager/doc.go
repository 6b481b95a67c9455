// Package manager composes the device manager: the authoritative
// registry of live devices, the boot-time full-system scan, and the
// runtime reconciliation the hot-plug worker drives.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Manager                              │
//	│                                                              │
//	│  DetectAll ──┐                       ┌── GetDevice /         │
//	│              ▼                       │   ListDevices (views) │
//	│  SyncFamily ──▶ insertDevice ──▶ registry ◀── removeDevice   │
//	│      ▲              │                                 │      │
//	└──────│──────────────│─────────────────────────────────│──────┘
//	       │              ▼                                 ▼
//	hotplug.Manager   resource.Arbiter ◀──── grants released before
//	(worker, events)  (reserve/release)      eviction, always
//
// The registry is the single serialisation point for mutations; records
// are replaced atomically, never mutated in place, so read snapshots
// stay consistent. Bus probing always happens before the registry or
// arbiter locks are taken. Lock order is registry then arbiter, never
// the reverse.
package manager
