package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/me/eosched/internal/config"
)

func testGate(minMem, minDisk, freeMem, freeDisk uint64) *ResourceGate {
	g := NewResourceGate(config.SchedulerConfig{MinFreeMemory: minMem, MinFreeDisk: minDisk}, testLogger())
	g.freeMemory = func(context.Context) (uint64, error) { return freeMem, nil }
	g.freeDisk = func(context.Context, string) (uint64, error) { return freeDisk, nil }
	return g
}

func TestResourceGate(t *testing.T) {
	const gb = 1 << 30
	tests := []struct {
		name                       string
		minMem, minDisk, mem, disk uint64
		want                       bool
	}{
		{"disabled", 0, 0, 0, 0, true},
		{"enough", gb, gb, 2 * gb, 2 * gb, true},
		{"exact", gb, gb, gb, gb, true},
		{"low memory", 2 * gb, 0, gb, 0, false},
		{"low disk", 0, 2 * gb, 0, gb, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := testGate(tt.minMem, tt.minDisk, tt.mem, tt.disk).Available(context.Background())
			if err != nil {
				t.Fatalf("Available: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Available = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestResourceGate_ProbeError(t *testing.T) {
	g := testGate(1, 0, 0, 0)
	g.freeMemory = func(context.Context) (uint64, error) { return 0, errors.New("no /proc/meminfo") }
	if _, err := g.Available(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestResourceGate_DefaultDiskPath(t *testing.T) {
	g := NewResourceGate(config.SchedulerConfig{}, testLogger())
	if g.diskPath != "/" {
		t.Errorf("diskPath = %q, want /", g.diskPath)
	}
}
