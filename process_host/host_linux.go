//go:build linux

package process_host

import (
	"splitwatch/process"
	"splitwatch/process_linux"
)

// NewHelper returns the process helper for the running OS
func NewHelper() process.ProcessHelper {
	return process_linux.NewHelper()
}
