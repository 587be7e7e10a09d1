package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Write creates the pid file, refusing when another live process holds it
func Write(path string) error {
	if pid, ok := readPid(path); ok && processAlive(pid) {
		return fmt.Errorf("daemon already running with pid %d", pid)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// Remove deletes the pid file if it belongs to this process
func Remove(path string) {
	if pid, ok := readPid(path); ok && pid == os.Getpid() {
		_ = os.Remove(path)
	}
}

func readPid(path string) (int, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
