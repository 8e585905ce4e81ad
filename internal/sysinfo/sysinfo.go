// Package sysinfo gathers a point-in-time snapshot of the appliance's
// resources for the console status page. Every probe is best-effort: a
// failing probe leaves its fields zero instead of failing the snapshot.
package sysinfo

import (
	"sync"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// BlockDevice is one physical disk as inventoried by ghw.
type BlockDevice struct {
	Name   string  `json:"name"`
	SizeGB float64 `json:"size_gb"`
	Model  string  `json:"model,omitempty"`
}

// Snapshot holds system-wide resource usage.
type Snapshot struct {
	Hostname      string  `json:"hostname"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	CPUModel      string  `json:"cpu_model,omitempty"`
	CPUCores      int     `json:"cpu_cores"`
	CPUPercent    float64 `json:"cpu_percent"`

	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	BlockDevices []BlockDevice `json:"block_devices,omitempty"`
}

// Collector caches the static hardware facts between snapshots. Safe for
// concurrent use.
type Collector struct {
	once         sync.Once
	cpuModel     string
	cpuCores     int
	blockDevices []BlockDevice
}

// NewCollector creates a collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect gathers current system statistics.
func (c *Collector) Collect() Snapshot {
	var s Snapshot

	c.collectHardwareInfo(&s)

	if info, err := host.Info(); err == nil {
		s.Hostname = info.Hostname
		s.UptimeSeconds = info.Uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalMB = float64(vm.Total) / 1024 / 1024
		s.MemUsedMB = float64(vm.Used) / 1024 / 1024
		s.MemPercent = vm.UsedPercent
	}
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if du, err := disk.Usage("/"); err == nil {
		s.DiskTotalGB = float64(du.Total) / 1024 / 1024 / 1024
		s.DiskUsedGB = float64(du.Used) / 1024 / 1024 / 1024
		s.DiskPercent = du.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		s.LoadAvg1 = avg.Load1
		s.LoadAvg5 = avg.Load5
		s.LoadAvg15 = avg.Load15
	}

	return s
}

// collectHardwareInfo resolves the static facts once and reuses them.
func (c *Collector) collectHardwareInfo(s *Snapshot) {
	c.once.Do(func() {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			c.cpuModel = infos[0].ModelName
		}
		if count, err := cpu.Counts(true); err == nil {
			c.cpuCores = count
		}
		if block, err := ghw.Block(); err == nil {
			for _, d := range block.Disks {
				c.blockDevices = append(c.blockDevices, BlockDevice{
					Name:   d.Name,
					SizeGB: float64(d.SizeBytes) / 1024 / 1024 / 1024,
					Model:  d.Model,
				})
			}
		}
	})

	s.CPUModel = c.cpuModel
	s.CPUCores = c.cpuCores
	s.BlockDevices = c.blockDevices
}
