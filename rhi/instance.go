package rhi

import (
	"github.com/dohjohansson/forge/internal/logging"
	"github.com/dohjohansson/forge/internal/vkb"
)

// InstanceConfig mirrors the platform-level application/engine identity a
// Vulkan instance is created with.
type InstanceConfig struct {
	ApplicationName    string
	EngineName         string
	ApplicationVersion uint32
	EngineVersion      uint32
	APIVersion         uint32
	// Validation is forwarded to the driver in InstanceCreateInfo and
	// logged by NewInstance. No debug messenger is registered, so
	// validation messages are neither reported nor trapped.
	Validation bool
	Logger     *logging.Logger
}

// Instance owns the driver's top-level handle and enumerates physical
// devices for NewDevice to select from.
type Instance struct {
	driver  vkb.Driver
	handle  vkb.Handle
	config  InstanceConfig
	logger  *logging.Logger
	devices []vkb.PhysicalDeviceInfo
}

// NewInstance creates a driver instance and enumerates its physical
// devices. driver is usually vkb.NewRealDriver(nil) in production and
// vkb.NewFakeDriver() in tests.
func NewInstance(driver vkb.Driver, cfg InstanceConfig) (*Instance, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	h, err := driver.CreateInstance(vkb.InstanceCreateInfo{
		ApplicationName:    cfg.ApplicationName,
		EngineName:         cfg.EngineName,
		ApplicationVersion: cfg.ApplicationVersion,
		EngineVersion:      cfg.EngineVersion,
		APIVersion:         cfg.APIVersion,
		Validation:         cfg.Validation,
	})
	if err != nil {
		return nil, WrapError("NewInstance", err)
	}
	devices, err := driver.EnumeratePhysicalDevices(h)
	if err != nil {
		driver.DestroyInstance(h)
		return nil, WrapError("NewInstance", err)
	}
	if cfg.Validation {
		logger.Warnf("validation requested: no debug messenger is registered, validation messages are not trapped")
	}
	return &Instance{driver: driver, handle: h, config: cfg, logger: logger, devices: devices}, nil
}

// PhysicalDevices returns the enumerated physical devices, in driver order.
func (i *Instance) PhysicalDevices() []vkb.PhysicalDeviceInfo {
	return i.devices
}

// Close destroys the underlying driver instance.
func (i *Instance) Close() {
	i.driver.DestroyInstance(i.handle)
}
