//go:build !windows

package rawinput

// NewPlatform reports ErrNotAvailable outside Windows.
func NewPlatform() (Platform, error) {
	return nil, ErrNotAvailable
}
