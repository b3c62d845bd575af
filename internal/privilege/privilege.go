//go:build linux

// Package privilege answers whether the process holds the access DRM
// master-only ioctls demand.
package privilege

import (
	"fmt"
	"os"
)

// IsRoot reports whether the process runs with effective UID 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Require returns an error explaining how to rerun when the process
// lacks the privileges framebuffer handle export needs.
func Require() error {
	if !IsRoot() {
		return fmt.Errorf("reading framebuffer handles requires root, rerun with sudo")
	}
	return nil
}
