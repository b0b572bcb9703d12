package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/me/eosched/internal/config"
)

// ResourceGate reports the host unavailable when free memory or free disk
// space drops below the configured minimum. A zero minimum disables the check.
type ResourceGate struct {
	minFreeMemory uint64
	minFreeDisk   uint64
	diskPath      string
	logger        *slog.Logger

	// Replaced in tests.
	freeMemory func(ctx context.Context) (uint64, error)
	freeDisk   func(ctx context.Context, path string) (uint64, error)
}

// NewResourceGate creates a gate from the scheduler configuration.
func NewResourceGate(cfg config.SchedulerConfig, logger *slog.Logger) *ResourceGate {
	path := cfg.DiskPath
	if path == "" {
		path = "/"
	}
	return &ResourceGate{
		minFreeMemory: cfg.MinFreeMemory,
		minFreeDisk:   cfg.MinFreeDisk,
		diskPath:      path,
		logger:        logger.With("component", "resource-gate"),
		freeMemory: func(ctx context.Context) (uint64, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return 0, err
			}
			return vm.Available, nil
		},
		freeDisk: func(ctx context.Context, path string) (uint64, error) {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		},
	}
}

// Available implements ResourceChecker.
func (g *ResourceGate) Available(ctx context.Context) (bool, error) {
	if g.minFreeMemory > 0 {
		free, err := g.freeMemory(ctx)
		if err != nil {
			return false, fmt.Errorf("read memory stats: %w", err)
		}
		if free < g.minFreeMemory {
			g.logger.Warn("low memory; skipping tick",
				"free", humanize.Bytes(free), "required", humanize.Bytes(g.minFreeMemory))
			return false, nil
		}
	}

	if g.minFreeDisk > 0 {
		free, err := g.freeDisk(ctx, g.diskPath)
		if err != nil {
			return false, fmt.Errorf("read disk usage %s: %w", g.diskPath, err)
		}
		if free < g.minFreeDisk {
			g.logger.Warn("low disk space; skipping tick",
				"path", g.diskPath, "free", humanize.Bytes(free), "required", humanize.Bytes(g.minFreeDisk))
			return false, nil
		}
	}
	return true, nil
}
