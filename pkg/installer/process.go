package installer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

func (d *DevStack) installerPIDs() ([]int, error) {
	return findProcesses(d.opts.ProcRoot, stackScript, os.Getpid())
}

// findProcesses returns the PIDs whose command line runs script, either as
// the executable or as the first argument to a shell
func findProcesses(procRoot, script string, self int) ([]int, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to scan processes: %w", err)
	}

	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid == self {
			continue
		}
		// Processes exit while we scan
		cmdline, err := os.ReadFile(filepath.Join(procRoot, e.Name(), "cmdline"))
		if err != nil || len(cmdline) == 0 {
			continue
		}
		if runsScript(cmdline, script) {
			pids = append(pids, pid)
		}
	}
	sort.Ints(pids)
	return pids, nil
}

func runsScript(cmdline []byte, script string) bool {
	args := bytes.Split(bytes.TrimRight(cmdline, "\x00"), []byte{0})
	if filepath.Base(string(args[0])) == script {
		return true
	}
	if len(args) < 2 {
		return false
	}
	switch filepath.Base(string(args[0])) {
	case "bash", "sh", "dash":
		return filepath.Base(string(args[1])) == script
	}
	return false
}
