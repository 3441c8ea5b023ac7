//go:build linux

package hostops

import (
	"fmt"
	"os"
	"strings"
)

// platformComm resolves pid's short process name via /proc/<pid>/comm, the
// same source the kernel's own cmdline cache draws from.
func platformComm(pid int32) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
