// Package sysinfo collects a snapshot of the machine a garden service runs on
// (usually a Raspberry Pi next to the broker).
package sysinfo

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Processes whose memory counts towards StackRamMB.
var stackProcesses = []string{
	"alert-notifier",
	"data-logger",
	"log-collector",
	"mosquitto",
}

// Snapshot is one reading of the host. Fields that could not be read stay
// zero; the failure is logged.
type Snapshot struct {
	Hostname   string  `json:"hostname"`
	Platform   string  `json:"platform"`
	UptimeSec  uint64  `json:"uptime_sec"`
	CPULoad    float64 `json:"cpu_load"`
	RamUsedMB  float64 `json:"ram_used_mb"`
	RamTotalMB float64 `json:"ram_total_mb"`
	// StackRamMB is the resident memory of the garden services and the broker.
	StackRamMB  float64 `json:"stack_ram_mb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskTotalGB float64 `json:"disk_total_gb"`
}

// Label is the short host description used in notifications.
func (s Snapshot) Label() string {
	switch {
	case s.Hostname != "" && s.Platform != "":
		return s.Hostname + " (" + s.Platform + ")"
	case s.Hostname != "":
		return s.Hostname
	default:
		return s.Platform
	}
}

// Collect reads the host. diskPath selects the partition to report, usually
// the one holding the database file; empty means "/".
func Collect(ctx context.Context, diskPath string, logger *slog.Logger) Snapshot {
	var s Snapshot

	if info, err := host.InfoWithContext(ctx); err == nil {
		s.Hostname = info.Hostname
		s.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
		s.UptimeSec = info.Uptime
	} else {
		logger.Warn("host info unavailable", "error", err)
		s.Hostname, _ = os.Hostname()
	}

	// A short sample keeps /status responsive.
	if pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		s.CPULoad = pct[0]
	} else if err != nil {
		logger.Warn("cpu stats unavailable", "error", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		// Used includes page cache on Linux; Total-Available is what apps hold.
		s.RamUsedMB = toMB(vm.Total - vm.Available)
		s.RamTotalMB = toMB(vm.Total)
	} else {
		logger.Warn("memory stats unavailable", "error", err)
	}

	s.StackRamMB = toMB(stackRSS(ctx))

	if diskPath == "" {
		diskPath = "/"
	}
	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		s.DiskUsedGB = toMB(du.Used) / 1024
		s.DiskTotalGB = toMB(du.Total) / 1024
	} else {
		logger.Warn("disk stats unavailable", "path", diskPath, "error", err)
	}

	return s
}

func stackRSS(ctx context.Context) uint64 {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0
	}
	var sum uint64
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Exited while we were iterating.
			continue
		}
		if !isStackProcess(name) {
			continue
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			sum += mi.RSS
		}
	}
	return sum
}

func isStackProcess(name string) bool {
	for _, target := range stackProcesses {
		if strings.Contains(name, target) {
			return true
		}
	}
	return false
}

func toMB(b uint64) float64 {
	return float64(b) / 1024.0 / 1024.0
}
