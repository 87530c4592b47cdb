package monitor

import (
	"errors"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostProvider exposes host utilization readings. A failed reading is
// reported per metric; the sampler substitutes zero and keeps going.
type HostProvider interface {
	CPUPercent() (float64, error)
	MemoryPercent() (float64, error)
}

// AcceleratorProvider exposes accelerator utilization readings. A nil
// provider means no accelerator was found at startup; readings stay zero.
type AcceleratorProvider interface {
	UtilizationPercent() (float64, error)
	MemoryPercent() (float64, error)
	Device() string
}

// SystemHost reads CPU and memory utilization of the local machine.
type SystemHost struct{}

func (SystemHost) CPUPercent() (float64, error) {
	pcts, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("no cpu utilization reading")
	}
	return pcts[0], nil
}

func (SystemHost) MemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
