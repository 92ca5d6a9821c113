package usb

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrPending is returned by Device.Close while a transfer is still in
	// flight. Closing may be retried.
	ErrPending = errors.New("usb: device has a pending request")
	// ErrTimeout is returned by a polled transfer that saw no data.
	ErrTimeout   = errors.New("usb: transfer timed out")
	ErrNoDevice  = errors.New("usb: no such device")
	ErrClosed    = errors.New("usb: device closed")
	ErrNoSupport = errors.New("usb: not supported on this platform")
)

// Transport enumerates devices and reports their arrival and removal.
type Transport interface {
	// Devices lists the attached devices. A device whose attributes cannot
	// be read yet is listed with Partial set.
	Devices() ([]DeviceInfo, error)
	Open(info DeviceInfo) (Device, error)
	// Hotplug delivers attach and detach notifications until ctx is done.
	// Delivery is best effort.
	Hotplug(ctx context.Context) (<-chan HotplugEvent, error)
}

// Device is an open device handle. Transfers on one endpoint must not be
// issued concurrently.
type Device interface {
	Info() DeviceInfo
	DetachKernelDriver(iface uint8) error
	ClaimInterface(iface uint8) error
	// Control issues a class or vendor request on endpoint zero and returns
	// the number of bytes transferred.
	Control(ctx context.Context, setup SetupPacket, data []byte) (int, error)
	// Read blocks until the IN endpoint delivers data or ctx is done.
	Read(ctx context.Context, ep uint8, buf []byte) (int, error)
	// Write submits data to the OUT endpoint and waits for its completion.
	Write(ctx context.Context, ep uint8, data []byte) (int, error)
	Close() error
}

type DeviceInfo struct {
	Bus               int             `json:"bus"`
	Address           int             `json:"address"`
	PortPath          string          `json:"port_path"`
	VendorID          uint16          `json:"vendor_id"`
	ProductID         uint16          `json:"product_id"`
	SerialIndex       uint8           `json:"serial_index"`
	NumConfigurations uint8           `json:"num_configurations"`
	Class             uint8           `json:"class"`
	Interfaces        []InterfaceDesc `json:"interfaces,omitempty"`

	// Partial devices carry PortPath and whatever was read before the
	// failure. They only prove the device is still present.
	Partial bool `json:"partial,omitempty"`
}

// PortID identifies the physical port. It survives re-enumeration.
func (d DeviceInfo) PortID() string { return d.PortPath }

// DeviceID is the bus address, which changes every time the device resets.
func (d DeviceInfo) DeviceID() string { return fmt.Sprintf("%d:%d", d.Bus, d.Address) }

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%04x:%04x@%s(%s)", d.VendorID, d.ProductID, d.DeviceID(), d.PortID())
}

func (d DeviceInfo) Interface(num uint8) (InterfaceDesc, bool) {
	for _, iface := range d.Interfaces {
		if iface.Number == num {
			return iface, true
		}
	}
	return InterfaceDesc{}, false
}

type InterfaceDesc struct {
	Number    uint8          `json:"number"`
	Class     uint8          `json:"class"`
	SubClass  uint8          `json:"sub_class"`
	Protocol  uint8          `json:"protocol"`
	Endpoints []EndpointDesc `json:"endpoints,omitempty"`
}

// Endpoint returns the first endpoint of the given type and direction.
func (i InterfaceDesc) Endpoint(typ TransferType, in bool) (EndpointDesc, bool) {
	for _, ep := range i.Endpoints {
		if ep.Type() == typ && ep.In() == in {
			return ep, true
		}
	}
	return EndpointDesc{}, false
}

type EndpointDesc struct {
	Address       uint8  `json:"address"`
	Attributes    uint8  `json:"attributes"`
	MaxPacketSize uint16 `json:"max_packet_size"`
}

func (e EndpointDesc) In() bool           { return e.Address&EndpointDirIn != 0 }
func (e EndpointDesc) Type() TransferType { return TransferType(e.Attributes & 0x03) }
func (e EndpointDesc) Number() uint8      { return e.Address & 0x0f }

func (e EndpointDesc) String() string {
	dir := "out"
	if e.In() {
		dir = "in"
	}
	return fmt.Sprintf("ep%d-%s-%s", e.Number(), dir, e.Type())
}

const EndpointDirIn = 0x80

type TransferType uint8

const (
	TransferControl TransferType = iota
	TransferIsochronous
	TransferBulk
	TransferInterrupt
)

var transferTypeToStr = map[TransferType]string{
	TransferControl:     "control",
	TransferIsochronous: "isochronous",
	TransferBulk:        "bulk",
	TransferInterrupt:   "interrupt",
}

func (t TransferType) String() string { return transferTypeToStr[t] }

// Class requests addressed to an interface.
const (
	RequestTypeClassInterfaceOut uint8 = 0x21
	RequestTypeClassInterfaceIn  uint8 = 0xa1

	RequestSendEncapsulatedCommand uint8 = 0x00
	RequestGetEncapsulatedResponse uint8 = 0x01
)

// SetupPacket is the 8 byte control request. Length is taken from the data
// buffer when zero.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

func (s SetupPacket) In() bool { return s.RequestType&EndpointDirIn != 0 }

func (s SetupPacket) String() string {
	return fmt.Sprintf("%02x/%02x/%04x/%04x/%d", s.RequestType, s.Request, s.Value, s.Index, s.Length)
}

type HotplugAction int

const (
	HotplugAttach HotplugAction = iota
	HotplugDetach
)

func (a HotplugAction) String() string {
	if a == HotplugDetach {
		return "detach"
	}
	return "attach"
}

// HotplugEvent carries whatever identity is known at notification time. A
// detached device may only report its port, bus and address.
type HotplugEvent struct {
	Action HotplugAction
	Device DeviceInfo
}
