//go:build linux

package usbfs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/usbboot/internal/usb"
	"golang.org/x/sys/unix"
)

const (
	ueventGroupKernel = 1
	ueventBufferSize  = 8192
	ueventReadTimeout = 500 * time.Millisecond
)

// Hotplug listens on the kobject uevent netlink socket. The socket has a
// receive timeout so the reader notices ctx cancellation.
func (t *Transport) Hotplug(ctx context.Context) (<-chan usb.HotplugEvent, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, errors.Wrap(err, "unix.Socket")
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: ueventGroupKernel}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "unix.Bind")
	}
	tv := unix.NsecToTimeval(ueventReadTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "unix.SetsockoptTimeval")
	}

	events := make(chan usb.HotplugEvent, 16)
	go func() {
		defer close(events)
		defer unix.Close(fd)

		buf := make([]byte, ueventBufferSize)
		for ctx.Err() == nil {
			n, _, err := unix.Recvfrom(fd, buf, 0)
			if err != nil {
				if err == unix.EAGAIN || err == unix.EINTR {
					continue
				}
				logrus.WithError(err).Warn("Stop hotplug monitor")
				return
			}

			hp, ok := parseUEvent(buf[:n]).hotplugEvent()
			if !ok {
				continue
			}
			if hp.Action == usb.HotplugAttach {
				// Device attributes are in sysfs when the add event is sent,
				// interface directories may still be missing.
				if info, err := t.sysfs.device(hp.Device.PortPath); err == nil {
					hp.Device = info
				}
			}

			select {
			case events <- hp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
