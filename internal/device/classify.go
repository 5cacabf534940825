package device

import "strings"

// ConnectionType indicates how a keyboard is attached.
type ConnectionType int

// Connection types.
const (
	ConnectionUnknown ConnectionType = iota
	ConnectionUSB
	ConnectionBluetooth
	ConnectionInternal
	ConnectionVirtual
)

// String returns the connection type as a string.
func (ct ConnectionType) String() string {
	switch ct {
	case ConnectionUSB:
		return "usb"
	case ConnectionBluetooth:
		return "bluetooth"
	case ConnectionInternal:
		return "internal"
	case ConnectionVirtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// Classify guesses the connection type from a device path.
func Classify(path string) ConnectionType {
	p := strings.ToUpper(path)
	switch {
	case p == "":
		return ConnectionUnknown
	case strings.Contains(p, "BTHLE") || strings.Contains(p, "BTH"):
		return ConnectionBluetooth
	case strings.Contains(p, "USB") || strings.Contains(p, "HID#VID_"):
		return ConnectionUSB
	case strings.Contains(p, "ACPI") || strings.Contains(p, "PS2"):
		return ConnectionInternal
	case strings.Contains(p, "ROOT#") || strings.Contains(p, "TERMINPUT"):
		return ConnectionVirtual
	default:
		return ConnectionUnknown
	}
}
