package system

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a snapshot of this process' footprint for the --stats report.
type Usage struct {
	RSSBytes        uint64
	CPUPercent      float64
	SystemMemTotal  uint64
	SystemMemUsedPc float64
	LogicalCPUs     int
}

// ReadUsage collects what it can; fields it fails to read stay zero.
func ReadUsage() Usage {
	var u Usage
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			u.RSSBytes = mi.RSS
		}
		if pct, err := p.CPUPercent(); err == nil {
			u.CPUPercent = pct
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.SystemMemTotal = vm.Total
		u.SystemMemUsedPc = vm.UsedPercent
	}
	if n, err := cpu.Counts(true); err == nil {
		u.LogicalCPUs = n
	}
	return u
}

func (u Usage) String() string {
	return fmt.Sprintf("RSS: %.1f MiB | CPU: %.1f%% of %d cores | System memory: %.1f%% of %.1f GiB",
		float64(u.RSSBytes)/(1<<20), u.CPUPercent, u.LogicalCPUs,
		u.SystemMemUsedPc, float64(u.SystemMemTotal)/(1<<30))
}
