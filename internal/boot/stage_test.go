package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/internal/usb"
)

func TestIdentify(t *testing.T) {
	testCases := []struct {
		name  string
		info  usb.DeviceInfo
		stage Stage
		boot  bool
	}{
		{name: "rom", info: usb.DeviceInfo{VendorID: VendorTI, ProductID: ProductROM, NumConfigurations: 1}, stage: StageROM, boot: true},
		{name: "spl", info: usb.DeviceInfo{VendorID: VendorTI, ProductID: ProductSPL, NumConfigurations: 2}, stage: StageSPL, boot: true},
		{name: "mass storage", info: usb.DeviceInfo{VendorID: VendorTI, ProductID: ProductSPL, NumConfigurations: 1}, stage: StageMassStorage, boot: true},
		{name: "configured", info: usb.DeviceInfo{VendorID: VendorTI, ProductID: ProductROM, SerialIndex: 3}, stage: StageNone, boot: true},
		{name: "other product", info: usb.DeviceInfo{VendorID: VendorTI, ProductID: 0x1234}, stage: StageNone},
		{name: "other vendor", info: usb.DeviceInfo{VendorID: 0x1d6b, ProductID: ProductROM}, stage: StageNone},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.stage, Identify(testCase.info), testCase.name)
		assert.Equal(t, testCase.boot, BootCapable(testCase.info), testCase.name)
	}
}

func TestFraming(t *testing.T) {
	iface0 := func(class, sub, proto uint8) usb.DeviceInfo {
		return usb.DeviceInfo{Interfaces: []usb.InterfaceDesc{{Number: 0, Class: class, SubClass: sub, Protocol: proto}}}
	}

	assert.Equal(t, netboot.FramingRNDIS, Framing(iface0(0xe0, 0x01, 0x03)))
	assert.Equal(t, netboot.FramingRNDIS, Framing(iface0(0x02, 0x02, 0xff)))
	assert.Equal(t, netboot.FramingRaw, Framing(iface0(0x02, 0x06, 0x00)))
	assert.Equal(t, netboot.FramingRaw, Framing(iface0(0xe0, 0x01, 0x01)))
	assert.Equal(t, netboot.FramingRaw, Framing(usb.DeviceInfo{}))
}
