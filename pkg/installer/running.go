package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/mp4-to-gif-converter/packager/pkg/cleanup"
	"github.com/shirou/gopsutil/process"
)

// processesUnder returns the pids of processes whose executable lives
// below dir.
func processesUnder(ctx context.Context, dir string) ([]int32, error) {
	allProcesses, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting process list: %w", err)
	}

	var pids []int32
	for _, p := range allProcesses {
		// other users' processes are not readable, and could not have
		// been started from a per-user install anyway
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if cleanup.Overlaps(filepath.Clean(dir), filepath.Clean(exe), filepath.Separator, runtime.GOOS == "windows") {
			pids = append(pids, p.Pid)
		}
	}

	return pids, nil
}
