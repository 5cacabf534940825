package rawinput

import "fmt"

// Keyboard is an attached keyboard-class raw input device.
type Keyboard struct {
	Handle uintptr
	Path   string
}

// Keyboards lists attached keyboards with their device paths. Devices
// without a path are reported with an empty Path.
func Keyboards(api WindowAPI) ([]Keyboard, error) {
	entries, err := api.RawInputDeviceList()
	if err != nil {
		return nil, fmt.Errorf("list raw input devices: %w", err)
	}
	out := make([]Keyboard, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != RIMTypeKeyboard {
			continue
		}
		path, _ := DeviceName(api, entry.Handle)
		out = append(out, Keyboard{Handle: entry.Handle, Path: path})
	}
	return out, nil
}
