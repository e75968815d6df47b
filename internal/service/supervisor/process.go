package supervisor

import (
	"context"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/launchpad/internal/logger"
)

// processEntry identifies a process by pid and executable name, so a reused
// pid is not mistaken for the original process.
type processEntry struct {
	pid        int
	executable string
}

// descendants returns every process below pid in the process table, parents
// before children.
func descendants(ctx context.Context, pid int) []processEntry {
	processList, err := ps.Processes()
	if err != nil {
		logger.WarnKV(ctx, "Could not list processes", "error", err)
		return nil
	}

	children := make(map[int][]ps.Process, len(processList))
	for _, p := range processList {
		children[p.PPid()] = append(children[p.PPid()], p)
	}

	var (
		result []processEntry
		queue  = []int{pid}
	)

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, child := range children[parent] {
			if child.Pid() == pid {
				continue
			}

			result = append(result, processEntry{pid: child.Pid(), executable: child.Executable()})
			queue = append(queue, child.Pid())
		}
	}

	return result
}

// killDescendants kills the recorded processes that are still alive.
func killDescendants(ctx context.Context, entries []processEntry) {
	for _, entry := range entries {
		current, err := ps.FindProcess(entry.pid)
		if err != nil || current == nil || current.Executable() != entry.executable {
			continue
		}

		process, err := os.FindProcess(entry.pid)
		if err != nil {
			continue
		}

		if err = process.Kill(); err != nil {
			logger.WarnKV(ctx, "Failed to kill leftover process",
				"pid", entry.pid, "process", entry.executable, "error", err)

			continue
		}

		_ = process.Release()

		logger.InfoKV(ctx, "Killed leftover process", "pid", entry.pid, "process", entry.executable)
	}
}

// confirmExited checks the process table after the child has been reaped.
func confirmExited(ctx context.Context, pid int) {
	current, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Could not look up child", "pid", pid, "error", err)
		return
	}

	if current != nil {
		logger.WarnKV(ctx, "Child is still in the process table", "pid", pid, "process", current.Executable())
	}
}

// logChildProcess reports the child as seen in the process table.
func logChildProcess(ctx context.Context, pid int) {
	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		logger.InfoKV(ctx, "Child started", "pid", pid)
		return
	}

	logger.InfoKV(ctx, "Child started", "pid", pid, "process", process.Executable(), "parent_pid", process.PPid())
}
