// Package device defines the shared vocabulary of the device manager:
// bus families, device identity, the closed classification set, the
// record lifecycle states, and the Device capability contract.
//
// # Key Types
//
//   - ID: bus family + bus-relative address, the registry key
//   - Class: closed classification set driving driver-factory selection
//   - State: record lifecycle (discovered ... ready ... destroyed)
//   - RawDescriptor: transient probe result, pre-classification
//   - Device: the capability object the registry owns and serialises
//
// Everything here is passive data plus one interface; behaviour lives in
// the bus, resource, hotplug and manager packages.
package device
