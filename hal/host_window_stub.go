//go:build !tinygo && !cgo

package hal

import "errors"

// RunWindow needs ebiten, which needs cgo. Use RunHeadless instead.
func RunWindow(func(HAL) func() error, HostConfig) error {
	return errors.New("hal: window mode needs a cgo build; run headless")
}
