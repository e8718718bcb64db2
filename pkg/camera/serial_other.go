//go:build !linux

package camera

import "os"

// openSerial opens path for writing. The port speed must be configured
// outside boothd (stty) on this platform.
func openSerial(path string, baud int) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY, 0)
}
