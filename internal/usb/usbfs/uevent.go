package usbfs

import (
	"bytes"
	"path"
	"strconv"
	"strings"

	"github.com/zxhio/usbboot/internal/usb"
)

// uevent is a kernel kobject event, "action@devpath" followed by KEY=VALUE
// strings, each terminated by NUL.
type uevent struct {
	action    string
	devpath   string
	subsystem string
	devtype   string
	busnum    string
	devnum    string
	product   string // vid/pid/bcd in hex without leading zeros
}

func parseUEvent(data []byte) uevent {
	var ev uevent
	for i, field := range bytes.Split(data, []byte{0}) {
		if len(field) == 0 {
			continue
		}
		s := string(field)
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			if i == 0 {
				ev.action, ev.devpath, _ = strings.Cut(s, "@")
			}
			continue
		}
		switch key {
		case "ACTION":
			ev.action = value
		case "DEVPATH":
			ev.devpath = value
		case "SUBSYSTEM":
			ev.subsystem = value
		case "DEVTYPE":
			ev.devtype = value
		case "BUSNUM":
			ev.busnum = value
		case "DEVNUM":
			ev.devnum = value
		case "PRODUCT":
			ev.product = value
		}
	}
	return ev
}

// hotplugEvent converts a usb_device add or remove event. Interface and
// endpoint events, and other actions, are ignored.
func (ev uevent) hotplugEvent() (usb.HotplugEvent, bool) {
	if ev.subsystem != "usb" || ev.devtype != "usb_device" {
		return usb.HotplugEvent{}, false
	}

	var hp usb.HotplugEvent
	switch ev.action {
	case "add":
		hp.Action = usb.HotplugAttach
	case "remove":
		hp.Action = usb.HotplugDetach
	default:
		return usb.HotplugEvent{}, false
	}

	hp.Device.PortPath = path.Base(ev.devpath)
	if v, err := strconv.ParseUint(ev.busnum, 10, 16); err == nil {
		hp.Device.Bus = int(v)
	}
	if v, err := strconv.ParseUint(ev.devnum, 10, 16); err == nil {
		hp.Device.Address = int(v)
	}
	ids := strings.Split(ev.product, "/")
	if len(ids) >= 2 {
		if v, err := strconv.ParseUint(ids[0], 16, 16); err == nil {
			hp.Device.VendorID = uint16(v)
		}
		if v, err := strconv.ParseUint(ids[1], 16, 16); err == nil {
			hp.Device.ProductID = uint16(v)
		}
	}
	return hp, true
}
