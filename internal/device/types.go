package device

import "fmt"

// Family identifies a hardware bus family with its own discovery protocol.
type Family string

// Family constants.
const (
	FamilyPCI       Family = "pci"
	FamilyUSB       Family = "usb"
	FamilyBluetooth Family = "bluetooth"
	FamilyPlatform  Family = "platform"
)

// AllFamilies returns all valid bus family values.
func AllFamilies() []Family {
	return []Family{FamilyPCI, FamilyUSB, FamilyBluetooth, FamilyPlatform}
}

// ID is the stable, bus-relative identity of a managed device.
//
// It combines the bus family with a family-specific address string
// (e.g. "00:1f.2" for PCI bus/slot/function, "1-3" for USB bus-port).
// The ID is unique within the registry for the lifetime of the physical
// attachment; a removed and re-inserted unit may receive a new ID if its
// bus address is reused.
type ID struct {
	Family  Family `json:"family"`
	Address string `json:"address"`
}

// String returns the canonical "family/address" form.
func (id ID) String() string {
	return fmt.Sprintf("%s/%s", id.Family, id.Address)
}

// Class is the closed classification set that selects a driver factory.
type Class string

// Class constants.
const (
	ClassNetworkEthernet  Class = "network_ethernet"
	ClassNetworkWifi      Class = "network_wifi"
	ClassStorageUsb       Class = "storage_usb"
	ClassStorageAta       Class = "storage_ata"
	ClassBluetoothAdapter Class = "bluetooth_adapter"
	ClassAudioAdapter     Class = "audio_adapter"
	ClassVideoAdapter     Class = "video_adapter"
	ClassBridge           Class = "bridge"
	ClassUnknown          Class = "unknown"
)

// AllClasses returns all valid device class values.
func AllClasses() []Class {
	return []Class{
		ClassNetworkEthernet, ClassNetworkWifi, ClassStorageUsb,
		ClassStorageAta, ClassBluetoothAdapter, ClassAudioAdapter,
		ClassVideoAdapter, ClassBridge, ClassUnknown,
	}
}

// ValidClass reports whether c is a member of the closed class set.
func ValidClass(c Class) bool {
	for _, v := range AllClasses() {
		if v == c {
			return true
		}
	}
	return false
}

// State is the lifecycle state of a device record.
//
// Transitions are monotonic except the explicit Ready -> Removing step
// triggered by hot-plug removal. Destroyed is terminal; the record is
// evicted from the registry immediately afterwards.
type State string

// State constants.
const (
	StateDiscovered       State = "discovered"
	StateResourceReserved State = "resource_reserved"
	StateInitializing     State = "initializing"
	StateReady            State = "ready"
	StateFailed           State = "failed"
	StateRemoving         State = "removing"
	StateDestroyed        State = "destroyed"
)

// Terminal reports whether s admits no further transitions for its ID.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateDestroyed
}

// CapabilitySummary carries the raw classification fields read off the bus.
//
// Exactly which fields are populated depends on the bus family:
// PCI fills the class/subclass/prog-if triad, USB fills the device triad
// plus interface triads, Bluetooth fills the class-of-device word.
type CapabilitySummary struct {
	// PCI class code triad.
	PCIClass    uint8 `json:"pci_class,omitempty"`
	PCISubclass uint8 `json:"pci_subclass,omitempty"`
	PCIProgIF   uint8 `json:"pci_prog_if,omitempty"`

	// USB device descriptor triad.
	USBClass    uint8 `json:"usb_class,omitempty"`
	USBSubclass uint8 `json:"usb_subclass,omitempty"`
	USBProtocol uint8 `json:"usb_protocol,omitempty"`

	// USB interface triads, one per interface descriptor.
	USBInterfaces [][3]uint8 `json:"usb_interfaces,omitempty"`

	// Bluetooth inquiry-response class-of-device (24-bit).
	BluetoothCoD uint32 `json:"bluetooth_cod,omitempty"`
}

// RawDescriptor is the transient, non-owned record a bus enumerator
// produces for one discovered unit. It exists only long enough to be
// classified and wrapped into a managed Device; enumerators never retain
// references to it or to the Device built from it.
type RawDescriptor struct {
	ID         ID                `json:"id"`
	VendorID   uint32            `json:"vendor_id"`
	ProductID  uint32            `json:"product_id"`
	Capability CapabilitySummary `json:"capability"`

	// Extra holds family-specific probe details (header type, port
	// speed, inquiry RSSI) that classification does not depend on.
	Extra map[string]any `json:"extra,omitempty"`
}

// SameIdentity reports whether two descriptors for the same address
// describe the same physical unit. A mismatch under an unchanged ID
// means the address was reused by different hardware.
func (d RawDescriptor) SameIdentity(other RawDescriptor) bool {
	return d.VendorID == other.VendorID && d.ProductID == other.ProductID
}
