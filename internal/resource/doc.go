// Package resource implements the arbiter for the platform's finite
// resource pools: interrupt lines, DMA channels, and the MMIO address
// window.
//
// Grants are disjoint, exclusively owned slices of a pool, released
// exactly once when the owning device record is destroyed. IRQ and DMA
// lines come from small numbered pools; MMIO windows are carved
// first-fit from a base-sorted free list that coalesces on release, so
// fragmentation stays bounded over arbitrary insert/remove sequences.
package resource
