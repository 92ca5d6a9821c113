// Package usbfs drives USB devices through the Linux usbfs character devices.
// Devices are enumerated from sysfs and hotplug is read from kobject uevents.
package usbfs

import (
	"time"

	"github.com/spf13/afero"
	"github.com/zxhio/usbboot/internal/usb"
)

// DefaultPollTimeout bounds a single IN transfer so polling can be stopped.
const DefaultPollTimeout = 100 * time.Millisecond

type Transport struct {
	sysfs       sysfs
	devfsRoot   string
	pollTimeout time.Duration
}

type TransportOpt func(*Transport)

// WithFs reads sysfs through fs instead of the host filesystem.
func WithFs(fs afero.Fs) TransportOpt {
	return func(t *Transport) { t.sysfs.fs = fs }
}

func WithSysfsRoot(root string) TransportOpt {
	return func(t *Transport) { t.sysfs.root = root }
}

func WithDevfsRoot(root string) TransportOpt {
	return func(t *Transport) { t.devfsRoot = root }
}

func WithPollTimeout(d time.Duration) TransportOpt {
	return func(t *Transport) { t.pollTimeout = d }
}

func New(opts ...TransportOpt) *Transport {
	t := &Transport{
		sysfs:       sysfs{fs: afero.NewOsFs(), root: SysfsRoot},
		devfsRoot:   DevfsRoot,
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Devices() ([]usb.DeviceInfo, error) {
	return t.sysfs.scan()
}

// Lookup reads a single device by port path.
func (t *Transport) Lookup(portPath string) (usb.DeviceInfo, error) {
	return t.sysfs.device(portPath)
}

var _ usb.Transport = &Transport{}
