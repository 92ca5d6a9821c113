package boot

import (
	"fmt"

	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/internal/usb"
)

const (
	VendorTI   uint16 = 0x0451
	ProductROM uint16 = 0x6141
	ProductSPL uint16 = 0xd022
)

const (
	DefaultSPLFile   = "u-boot-spl.bin"
	DefaultImageFile = "u-boot.img"
)

// Interfaces used by the boot ROM and SPL gadgets.
const (
	controlInterface uint8 = 0
	dataInterface    uint8 = 1
)

// Stage is the boot phase a device announces through its product id.
type Stage int

const (
	StageNone Stage = iota
	StageROM
	StageSPL
	StageMassStorage
)

var stageToStr = map[Stage]string{
	StageNone:        "none",
	StageROM:         "rom",
	StageSPL:         "spl",
	StageMassStorage: "mass-storage",
}

func (s Stage) String() string {
	str, ok := stageToStr[s]
	if !ok {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return str
}

// BootCapable reports whether the vendor and product pair is served.
func BootCapable(info usb.DeviceInfo) bool {
	return info.VendorID == VendorTI && (info.ProductID == ProductROM || info.ProductID == ProductSPL)
}

// MassStorage reports whether the device came back as a USB mass storage
// gadget, the last stage of a successful boot.
func MassStorage(info usb.DeviceInfo) bool {
	return info.VendorID == VendorTI && info.ProductID == ProductSPL && info.NumConfigurations == 1
}

// Identify returns the stage of a device as listed to users.
func Identify(info usb.DeviceInfo) Stage {
	if MassStorage(info) {
		return StageMassStorage
	}
	return bootStage(info)
}

// bootStage returns the stage to serve. A device with a serial number index
// is already configured and is not served.
func bootStage(info usb.DeviceInfo) Stage {
	switch {
	case !BootCapable(info) || info.SerialIndex != 0:
		return StageNone
	case info.ProductID == ProductROM:
		return StageROM
	default:
		return StageSPL
	}
}

// Framing returns the link framing of a device from the class of its control
// interface. RNDIS functions use wireless controller class 0xE0/0x01/0x03 or
// the CDC vendor protocol 0x02/0x02/0xFF.
func Framing(info usb.DeviceInfo) netboot.Framing {
	iface, ok := info.Interface(controlInterface)
	if !ok {
		return netboot.FramingRaw
	}
	switch {
	case iface.Class == 0xe0 && iface.SubClass == 0x01 && iface.Protocol == 0x03:
		return netboot.FramingRNDIS
	case iface.Class == 0x02 && iface.SubClass == 0x02 && iface.Protocol == 0xff:
		return netboot.FramingRNDIS
	}
	return netboot.FramingRaw
}
