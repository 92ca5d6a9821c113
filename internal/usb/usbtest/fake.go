// Package usbtest provides an in-memory usb.Transport. Frames written by the
// host are queued for the test and frames queued by the test are returned by
// Read.
package usbtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zxhio/usbboot/internal/usb"
)

type Transport struct {
	mu      sync.Mutex
	devices map[string]usb.DeviceInfo
	opened  map[string]*Device
	opens   chan *Device
	hotplug chan usb.HotplugEvent

	// Copied into each opened device. Set them before the host runs.
	OpenErr       error
	WriteErr      error
	ControlErr    error
	PendingCloses int
}

func NewTransport() *Transport {
	return &Transport{
		devices: make(map[string]usb.DeviceInfo),
		opened:  make(map[string]*Device),
		opens:   make(chan *Device, 16),
		hotplug: make(chan usb.HotplugEvent, 16),
	}
}

// Plug makes info visible to Devices and, with notify, sends an attach event.
func (t *Transport) Plug(info usb.DeviceInfo, notify bool) {
	t.mu.Lock()
	t.devices[info.DeviceID()] = info
	t.mu.Unlock()
	if notify {
		t.hotplug <- usb.HotplugEvent{Action: usb.HotplugAttach, Device: info}
	}
}

func (t *Transport) Unplug(info usb.DeviceInfo, notify bool) {
	t.mu.Lock()
	delete(t.devices, info.DeviceID())
	t.mu.Unlock()
	if notify {
		t.hotplug <- usb.HotplugEvent{Action: usb.HotplugDetach, Device: info}
	}
}

func (t *Transport) Devices() ([]usb.DeviceInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	devices := make([]usb.DeviceInfo, 0, len(t.devices))
	for _, info := range t.devices {
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID() < devices[j].DeviceID() })
	return devices, nil
}

func (t *Transport) Open(info usb.DeviceInfo) (usb.Device, error) {
	if t.OpenErr != nil {
		return nil, t.OpenErr
	}
	d := NewDevice(info)
	t.mu.Lock()
	d.pendingCloses = t.PendingCloses
	d.writeErr = t.WriteErr
	d.controlErr = t.ControlErr
	t.opened[info.DeviceID()] = d
	t.mu.Unlock()

	select {
	case t.opens <- d:
	default:
	}
	return d, nil
}

func (t *Transport) Hotplug(ctx context.Context) (<-chan usb.HotplugEvent, error) {
	events := make(chan usb.HotplugEvent)
	go func() {
		defer close(events)
		for {
			select {
			case ev := <-t.hotplug:
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// WaitOpen returns the next device opened by the host.
func (t *Transport) WaitOpen(timeout time.Duration) (*Device, error) {
	select {
	case d := <-t.opens:
		return d, nil
	case <-time.After(timeout):
		return nil, errors.New("usbtest: no device opened")
	}
}

// Opened returns the last handle opened for a device id.
func (t *Transport) Opened(deviceID string) *Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened[deviceID]
}

// Device is an open fake handle.
type Device struct {
	info usb.DeviceInfo
	in   chan []byte
	out  chan []byte

	mu            sync.Mutex
	controls      []usb.SetupPacket
	claimed       []uint8
	detached      []uint8
	pendingCloses int
	closed        chan struct{}
	closeOnce     sync.Once
	writeErr      error
	controlErr    error
}

func NewDevice(info usb.DeviceInfo) *Device {
	return &Device{
		info:   info,
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

// Inject queues a frame sent by the device.
func (d *Device) Inject(frame []byte) { d.in <- frame }

// Next returns the next frame written by the host.
func (d *Device) Next(timeout time.Duration) ([]byte, bool) {
	select {
	case frame := <-d.out:
		return frame, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Written reports the number of frames written and not yet consumed.
func (d *Device) Written() int { return len(d.out) }

// FailWrites makes every following Write return err.
func (d *Device) FailWrites(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

func (d *Device) Controls() []usb.SetupPacket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]usb.SetupPacket(nil), d.controls...)
}

func (d *Device) Claimed() []uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint8(nil), d.claimed...)
}

func (d *Device) Closed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *Device) Info() usb.DeviceInfo { return d.info }

func (d *Device) DetachKernelDriver(iface uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detached = append(d.detached, iface)
	return nil
}

func (d *Device) ClaimInterface(iface uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimed = append(d.claimed, iface)
	return nil
}

func (d *Device) Control(ctx context.Context, setup usb.SetupPacket, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.controlErr != nil {
		return 0, d.controlErr
	}
	d.controls = append(d.controls, setup)
	return len(data), nil
}

// Read returns injected frames on bulk endpoints. Other endpoints never
// deliver data.
func (d *Device) Read(ctx context.Context, ep uint8, buf []byte) (int, error) {
	in := d.in
	if !d.isBulk(ep) {
		in = nil
	}
	select {
	case frame := <-in:
		return copy(buf, frame), nil
	case <-d.closed:
		return 0, usb.ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (d *Device) isBulk(ep uint8) bool {
	for _, iface := range d.info.Interfaces {
		for _, desc := range iface.Endpoints {
			if desc.Number() == ep&0x0f && desc.In() {
				return desc.Type() == usb.TransferBulk
			}
		}
	}
	return true
}

func (d *Device) Write(ctx context.Context, ep uint8, data []byte) (int, error) {
	d.mu.Lock()
	err := d.writeErr
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	select {
	case d.out <- append([]byte(nil), data...):
		return len(data), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (d *Device) Close() error {
	d.mu.Lock()
	if d.pendingCloses > 0 {
		d.pendingCloses--
		d.mu.Unlock()
		return usb.ErrPending
	}
	d.mu.Unlock()
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

var (
	_ usb.Transport = &Transport{}
	_ usb.Device    = &Device{}
)
