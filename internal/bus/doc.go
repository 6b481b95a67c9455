// Package bus defines the enumeration contract shared by every bus
// family, the enumeration error taxonomy, and the classification table
// mapping raw capability summaries to device classes.
//
// Family-specific probing lives in the sub-packages (pci, usb,
// bluetooth, platform); each converts its wire-level discovery protocol
// into the one polymorphic Enumerator contract this package declares.
package bus
