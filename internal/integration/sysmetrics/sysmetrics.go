// Package sysmetrics shows CPU, memory, disk, and load for the machine
// running the dashboard. Handy on a Pi tucked behind a TV where nobody
// ever opens a terminal.
package sysmetrics

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/integration"
)

//go:embed widget.html
var widgetHTML string

var widgetTmpl = template.Must(template.New("sysmetrics").Parse(widgetHTML))

type settings struct {
	RefreshInterval int    `yaml:"refresh_interval"`
	DiskPath        string `yaml:"disk_path"`
}

// Snapshot is one reading of the host's vitals.
type Snapshot struct {
	CPUPercent  float64
	MemPercent  float64
	MemUsedGB   float64
	MemTotalGB  float64
	DiskPercent float64
	DiskUsedGB  float64
	DiskTotalGB float64
	Load1       float64
	Load5       float64
	Load15      float64
	Uptime      string
}

// probeFuncs lets tests substitute the gopsutil calls.
type probeFuncs struct {
	cpuPercent func(ctx context.Context) ([]float64, error)
	virtualMem func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	loadAvg    func(ctx context.Context) (*load.AvgStat, error)
	uptime     func(ctx context.Context) (uint64, error)
}

func systemProbes() probeFuncs {
	return probeFuncs{
		cpuPercent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
		virtualMem: mem.VirtualMemoryWithContext,
		diskUsage:  disk.UsageWithContext,
		loadAvg:    load.AvgWithContext,
		uptime:     host.UptimeWithContext,
	}
}

type Collector struct {
	interval time.Duration
	diskPath string
	probes   probeFuncs
}

func New(creds *config.Credentials) (integration.Integration, error) {
	cfg := settings{
		RefreshInterval: 5,
		DiskPath:        "/",
	}
	if err := creds.Decode("sysmetrics", &cfg); err != nil {
		return nil, err
	}

	return &Collector{
		interval: time.Duration(cfg.RefreshInterval) * time.Second,
		diskPath: cfg.DiskPath,
		probes:   systemProbes(),
	}, nil
}

func (c *Collector) Name() string                   { return "sysmetrics" }
func (c *Collector) DisplayName() string            { return "System" }
func (c *Collector) RefreshInterval() time.Duration { return c.interval }

func (c *Collector) Fetch(ctx context.Context) (any, error) {
	snap := Snapshot{}

	cpuPcts, err := c.probes.cpuPercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cpu: %w", err)
	}
	if len(cpuPcts) > 0 {
		snap.CPUPercent = cpuPcts[0]
	}

	vm, err := c.probes.virtualMem(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory: %w", err)
	}
	snap.MemPercent = vm.UsedPercent
	snap.MemUsedGB = toGB(vm.Used)
	snap.MemTotalGB = toGB(vm.Total)

	du, err := c.probes.diskUsage(ctx, c.diskPath)
	if err != nil {
		return nil, fmt.Errorf("reading disk %s: %w", c.diskPath, err)
	}
	snap.DiskPercent = du.UsedPercent
	snap.DiskUsedGB = toGB(du.Used)
	snap.DiskTotalGB = toGB(du.Total)

	// Load average is unavailable on some platforms; show the rest anyway.
	if avg, err := c.probes.loadAvg(ctx); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	}

	up, err := c.probes.uptime(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading uptime: %w", err)
	}
	snap.Uptime = formatUptime(up)

	return snap, nil
}

func (c *Collector) Render(data any) (string, error) {
	snap, ok := data.(Snapshot)
	if !ok {
		return "", fmt.Errorf("sysmetrics: unexpected data type %T", data)
	}

	var b strings.Builder
	if err := widgetTmpl.Execute(&b, snap); err != nil {
		return "", err
	}
	return b.String(), nil
}

func toGB(bytes uint64) float64 {
	return float64(bytes) / (1 << 30)
}

func formatUptime(seconds uint64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
