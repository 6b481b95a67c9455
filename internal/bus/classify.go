package bus

import "github.com/samajesteduroyaume/devman/internal/device"

// PCI class codes used for classification.
const (
	pciClassStorage    = 0x01
	pciClassNetwork    = 0x02
	pciClassDisplay    = 0x03
	pciClassMultimedia = 0x04
	pciClassBridge     = 0x06
	pciClassSerialBus  = 0x0C
	pciClassWireless   = 0x0D

	pciSubclassUSB       = 0x03
	pciSubclassBluetooth = 0x11
	pciSubclassWifi      = 0x80
)

// USB class codes used for classification.
const (
	usbClassAudio       = 0x01
	usbClassCDC         = 0x02
	usbClassMassStorage = 0x08
	usbClassVideo       = 0x0E
	usbClassWireless    = 0xE0
)

// Bluetooth class-of-device major device classes (bits 8-12).
const (
	btMajorAudioVideo = 0x04
)

// Classify maps a raw descriptor's capability summary to a device class.
//
// The mapping is a closed dispatch per bus family; anything the tables
// do not cover lands in ClassUnknown rather than failing, so unfamiliar
// hardware is still visible in listings.
func Classify(d device.RawDescriptor) device.Class {
	switch d.ID.Family {
	case device.FamilyPCI:
		return classifyPCI(d.Capability)
	case device.FamilyUSB:
		return classifyUSB(d.Capability)
	case device.FamilyBluetooth:
		return classifyBluetooth(d.Capability)
	case device.FamilyPlatform:
		return classifyPlatform(d)
	default:
		return device.ClassUnknown
	}
}

// classifyPCI dispatches on the config-space class/subclass/prog-if triad.
func classifyPCI(c device.CapabilitySummary) device.Class {
	switch c.PCIClass {
	case pciClassNetwork:
		if c.PCISubclass == pciSubclassWifi {
			return device.ClassNetworkWifi
		}
		return device.ClassNetworkEthernet
	case pciClassStorage:
		return device.ClassStorageAta
	case pciClassDisplay:
		return device.ClassVideoAdapter
	case pciClassMultimedia:
		// 04:00 is a multimedia video device; 04:01 and 04:03 (HD Audio)
		// are audio devices.
		if c.PCISubclass == 0x00 {
			return device.ClassVideoAdapter
		}
		return device.ClassAudioAdapter
	case pciClassBridge:
		return device.ClassBridge
	case pciClassSerialBus:
		if c.PCISubclass == pciSubclassUSB {
			// USB host controller: the controller itself is managed as a
			// bridge-like unit; attached functions arrive via the USB bus.
			return device.ClassBridge
		}
		return device.ClassUnknown
	case pciClassWireless:
		if c.PCISubclass == pciSubclassBluetooth {
			return device.ClassBluetoothAdapter
		}
		return device.ClassNetworkWifi
	default:
		return device.ClassUnknown
	}
}

// classifyUSB considers the device triad first, then interface triads,
// since composite devices report class 0 at the device level.
func classifyUSB(c device.CapabilitySummary) device.Class {
	if cls := usbTriadClass(c.USBClass, c.USBSubclass, c.USBProtocol); cls != device.ClassUnknown {
		return cls
	}
	for _, iface := range c.USBInterfaces {
		if cls := usbTriadClass(iface[0], iface[1], iface[2]); cls != device.ClassUnknown {
			return cls
		}
	}
	return device.ClassUnknown
}

func usbTriadClass(class, subclass, protocol uint8) device.Class {
	switch class {
	case usbClassMassStorage:
		return device.ClassStorageUsb
	case usbClassCDC:
		// CDC-ECM / NCM network interfaces.
		return device.ClassNetworkEthernet
	case usbClassAudio:
		return device.ClassAudioAdapter
	case usbClassVideo:
		return device.ClassVideoAdapter
	case usbClassWireless:
		if subclass == 0x01 && protocol == 0x01 {
			return device.ClassBluetoothAdapter
		}
		return device.ClassUnknown
	default:
		return device.ClassUnknown
	}
}

// classifyBluetooth dispatches on the inquiry-response class-of-device.
// Discovered remote units are managed as adapters except audio-class
// peripherals, which route to the audio driver.
func classifyBluetooth(c device.CapabilitySummary) device.Class {
	major := (c.BluetoothCoD >> 8) & 0x1F
	if major == btMajorAudioVideo {
		return device.ClassAudioAdapter
	}
	return device.ClassBluetoothAdapter
}

// classifyPlatform trusts the class the platform table declared, carried
// through the descriptor's Extra map.
func classifyPlatform(d device.RawDescriptor) device.Class {
	if v, ok := d.Extra["class"].(string); ok {
		if c := device.Class(v); device.ValidClass(c) {
			return c
		}
	}
	return device.ClassUnknown
}
