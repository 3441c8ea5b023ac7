//go:build !linux

package hostops

import "github.com/shirou/gopsutil/v3/process"

// platformComm resolves pid's process name through gopsutil on platforms
// without /proc/<pid>/comm.
func platformComm(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}
