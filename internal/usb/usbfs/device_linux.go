//go:build linux

package usbfs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/zxhio/usbboot/internal/usb"
	"golang.org/x/sys/unix"
)

// Open opens the usbfs node of info.
func (t *Transport) Open(info usb.DeviceInfo) (usb.Device, error) {
	fd, err := unix.Open(devfsPath(t.devfsRoot, info.Bus, info.Address), unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(mapErrno(err), "unix.Open")
	}
	return &device{fd: fd, info: info, pollTimeout: t.pollTimeout}, nil
}

type device struct {
	fd          int
	info        usb.DeviceInfo
	pollTimeout time.Duration
	inflight    atomic.Int32

	mu      sync.Mutex
	claimed []uint8
	closed  bool
}

func (d *device) Info() usb.DeviceInfo { return d.info }

func (d *device) DetachKernelDriver(iface uint8) error {
	driver, err := boundDriver(d.fd, iface)
	if err != nil {
		return errors.Wrap(mapErrno(err), "usbfs.GetDriver")
	}
	if driver == "" || driver == "usbfs" {
		return nil
	}
	return errors.Wrapf(mapErrno(disconnectDriver(d.fd, iface)), "usbfs.Disconnect(%s)", driver)
}

func (d *device) ClaimInterface(iface uint8) error {
	if err := claimInterface(d.fd, iface); err != nil {
		return errors.Wrap(mapErrno(err), "usbfs.ClaimInterface")
	}
	d.mu.Lock()
	d.claimed = append(d.claimed, iface)
	d.mu.Unlock()
	return nil
}

func (d *device) Control(ctx context.Context, setup usb.SetupPacket, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if setup.Length != 0 && int(setup.Length) < len(data) {
		data = data[:setup.Length]
	}

	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	n, err := controlTransfer(d.fd, setup.RequestType, setup.Request, setup.Value, setup.Index, data, 0)
	if err != nil {
		return 0, errors.Wrapf(mapErrno(err), "usbfs.Control(%s)", setup)
	}
	return n, nil
}

// Read polls ep with a short transfer timeout until data arrives, the device
// goes away or ctx is done.
func (d *device) Read(ctx context.Context, ep uint8, buf []byte) (int, error) {
	timeout := uint32(d.pollTimeout / time.Millisecond)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		d.inflight.Add(1)
		n, err := bulkTransferIO(d.fd, ep|usb.EndpointDirIn, buf, timeout)
		d.inflight.Add(-1)

		if err == nil {
			if n == 0 {
				continue
			}
			return n, nil
		}
		if err = mapErrno(err); err != usb.ErrTimeout {
			return 0, errors.Wrap(err, "usbfs.Bulk")
		}
	}
}

// Write blocks until the transfer completes. It is never timed out.
func (d *device) Write(ctx context.Context, ep uint8, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	n, err := bulkTransferIO(d.fd, ep&^usb.EndpointDirIn, data, 0)
	if err != nil {
		return 0, errors.Wrap(mapErrno(err), "usbfs.Bulk")
	}
	return n, nil
}

// Close releases claimed interfaces and the usbfs node. It fails with
// usb.ErrPending while a transfer issued from another goroutine is running.
func (d *device) Close() error {
	if d.inflight.Load() > 0 {
		return usb.ErrPending
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	for _, iface := range d.claimed {
		releaseInterface(d.fd, iface)
	}
	d.claimed = nil
	return errors.Wrap(unix.Close(d.fd), "unix.Close")
}

func mapErrno(err error) error {
	switch err {
	case unix.ETIMEDOUT:
		return usb.ErrTimeout
	case unix.ENODEV, unix.ENOENT, unix.ESHUTDOWN:
		return usb.ErrNoDevice
	}
	return err
}
