//go:build windows

package process_host

import (
	"splitwatch/process"
	"splitwatch/process_windows"
)

// NewHelper returns the process helper for the running OS
func NewHelper() process.ProcessHelper {
	return process_windows.NewHelper()
}
