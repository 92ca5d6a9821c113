//go:build !linux

package usbfs

import (
	"context"

	"github.com/zxhio/usbboot/internal/usb"
)

func (t *Transport) Open(usb.DeviceInfo) (usb.Device, error) {
	return nil, usb.ErrNoSupport
}

func (t *Transport) Hotplug(context.Context) (<-chan usb.HotplugEvent, error) {
	return nil, usb.ErrNoSupport
}
