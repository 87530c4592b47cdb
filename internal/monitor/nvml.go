package monitor

import (
	"fmt"
	"log/slog"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// NVMLAccelerator reads utilization from the first NVML device.
type NVMLAccelerator struct {
	device nvml.Device
	name   string
}

// ProbeAccelerator initializes NVML and returns a provider for the first
// device, or nil when no usable accelerator is present. Probing happens once
// at startup; samplers treat a nil provider as permanent zero readings.
func ProbeAccelerator() *NVMLAccelerator {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		slog.Debug("nvml unavailable", "reason", nvml.ErrorString(ret))
		return nil
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		nvml.Shutdown()
		return nil
	}
	dev, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil
	}
	name, ret := dev.GetName()
	if ret != nvml.SUCCESS {
		name = "unknown accelerator"
	}
	slog.Info("accelerator detected", "device", name)
	return &NVMLAccelerator{device: dev, name: name}
}

func (a *NVMLAccelerator) UtilizationPercent() (float64, error) {
	util, ret := a.device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("nvml utilization: %s", nvml.ErrorString(ret))
	}
	return float64(util.Gpu), nil
}

func (a *NVMLAccelerator) MemoryPercent() (float64, error) {
	info, ret := a.device.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("nvml memory: %s", nvml.ErrorString(ret))
	}
	if info.Total == 0 {
		return 0, nil
	}
	return float64(info.Used) / float64(info.Total) * 100, nil
}

func (a *NVMLAccelerator) Device() string {
	return a.name
}
