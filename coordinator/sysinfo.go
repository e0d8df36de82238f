package coordinator

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemInfo reports the host facts published in MemberMeta.
type SystemInfo interface {
	// CPUFrequency returns the nominal CPU frequency in MHz.
	CPUFrequency(ctx context.Context) (float64, error)

	// Processors returns the number of logical processors.
	Processors(ctx context.Context) (int, error)
}

// HostInfo reads SystemInfo from the local host.
type HostInfo struct{}

var _ SystemInfo = HostInfo{}

// CPUFrequency returns the frequency of the first reported CPU.
func (HostInfo) CPUFrequency(ctx context.Context) (float64, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if len(infos) == 0 {
		return 0, nil
	}
	return infos[0].Mhz, nil
}

// Processors returns the logical processor count.
func (HostInfo) Processors(ctx context.Context) (int, error) {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n == 0 {
		return runtime.NumCPU(), err
	}
	return n, nil
}
