// Package sysinfo describes the host the app is running on.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info is the host summary served to the presentation layer. Memory sizes are
// in bytes.
type Info struct {
	Platform        string    `json:"platform"`
	Release         string    `json:"release"`
	Arch            string    `json:"arch"`
	CPUs            int       `json:"cpus"`
	TotalMem        uint64    `json:"totalmem"`
	FreeMem         uint64    `json:"freemem"`
	Hostname        string    `json:"hostname,omitempty"`
	PlatformName    string    `json:"platform_name,omitempty"`
	PlatformVersion string    `json:"platform_version,omitempty"`
	UptimeSeconds   uint64    `json:"uptime_seconds,omitempty"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collect gathers host information. Platform and Arch always come from the
// Go runtime. If some probes fail the partial Info is returned together with
// an aggregated error.
func Collect(ctx context.Context) (Info, error) {
	info := Info{
		Platform:    runtime.GOOS,
		Arch:        runtime.GOARCH,
		CPUs:        runtime.NumCPU(),
		CollectedAt: time.Now(),
	}
	if err := ctx.Err(); err != nil {
		return info, err
	}

	var errs []string

	if h, err := host.InfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("host: %v", err))
	} else {
		info.Release = h.KernelVersion
		info.Hostname = h.Hostname
		info.PlatformName = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.UptimeSeconds = h.Uptime
	}

	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		errs = append(errs, fmt.Sprintf("cpu: %v", err))
	} else if n > 0 {
		info.CPUs = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("memory: %v", err))
	} else {
		info.TotalMem = vm.Total
		info.FreeMem = vm.Available
	}

	if len(errs) > 0 {
		return info, fmt.Errorf("sysinfo: partial errors: %s", strings.Join(errs, "; "))
	}
	return info, nil
}
