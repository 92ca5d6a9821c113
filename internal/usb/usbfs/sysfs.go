package usbfs

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/zxhio/usbboot/internal/usb"
)

const (
	SysfsRoot = "/sys/bus/usb/devices"
	DevfsRoot = "/dev/bus/usb"
)

// Offset of iSerialNumber in the device descriptor.
const descSerialIndexOffset = 16

type sysfs struct {
	fs   afero.Fs
	root string
}

// scan lists every device directory. Root hubs (usbN) and interface
// directories (N-P:C.I) are skipped. Unreadable devices, usually being
// re-enumerated, are returned as partial.
func (s sysfs) scan() ([]usb.DeviceInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, errors.Wrap(err, "afero.ReadDir")
	}

	var devices []usb.DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		info, err := s.device(name)
		if err != nil {
			info.Partial = true
		}
		devices = append(devices, info)
	}
	return devices, nil
}

// device reads the device directory named by its port path, e.g. 1-1.2.
func (s sysfs) device(name string) (usb.DeviceInfo, error) {
	dir := filepath.Join(s.root, name)
	info := usb.DeviceInfo{PortPath: name}

	bus, err := s.readUint(filepath.Join(dir, "busnum"), 10, 16)
	if err != nil {
		return info, err
	}
	info.Bus = int(bus)
	addr, err := s.readUint(filepath.Join(dir, "devnum"), 10, 16)
	if err != nil {
		return info, err
	}
	info.Address = int(addr)
	vid, err := s.readUint(filepath.Join(dir, "idVendor"), 16, 16)
	if err != nil {
		return info, err
	}
	pid, err := s.readUint(filepath.Join(dir, "idProduct"), 16, 16)
	if err != nil {
		return info, err
	}
	info.VendorID, info.ProductID = uint16(vid), uint16(pid)

	if v, err := s.readUint(filepath.Join(dir, "bNumConfigurations"), 10, 8); err == nil {
		info.NumConfigurations = uint8(v)
	}
	if v, err := s.readUint(filepath.Join(dir, "bDeviceClass"), 16, 8); err == nil {
		info.Class = uint8(v)
	}
	if desc, err := afero.ReadFile(s.fs, filepath.Join(dir, "descriptors")); err == nil && len(desc) > descSerialIndexOffset {
		info.SerialIndex = desc[descSerialIndexOffset]
	}
	info.Interfaces = s.interfaces(dir, name)
	return info, nil
}

func (s sysfs) interfaces(dir, name string) []usb.InterfaceDesc {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil
	}

	var ifaces []usb.InterfaceDesc
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), name+":") {
			continue
		}
		ifaceDir := filepath.Join(dir, entry.Name())
		num, err := s.readUint(filepath.Join(ifaceDir, "bInterfaceNumber"), 16, 8)
		if err != nil {
			continue
		}
		iface := usb.InterfaceDesc{Number: uint8(num)}
		if v, err := s.readUint(filepath.Join(ifaceDir, "bInterfaceClass"), 16, 8); err == nil {
			iface.Class = uint8(v)
		}
		if v, err := s.readUint(filepath.Join(ifaceDir, "bInterfaceSubClass"), 16, 8); err == nil {
			iface.SubClass = uint8(v)
		}
		if v, err := s.readUint(filepath.Join(ifaceDir, "bInterfaceProtocol"), 16, 8); err == nil {
			iface.Protocol = uint8(v)
		}
		iface.Endpoints = s.endpoints(ifaceDir)
		ifaces = append(ifaces, iface)
	}
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Number < ifaces[j].Number })
	return ifaces
}

func (s sysfs) endpoints(dir string) []usb.EndpointDesc {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil
	}

	var eps []usb.EndpointDesc
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "ep_") {
			continue
		}
		epDir := filepath.Join(dir, entry.Name())
		addr, err := s.readUint(filepath.Join(epDir, "bEndpointAddress"), 16, 8)
		if err != nil {
			continue
		}
		ep := usb.EndpointDesc{Address: uint8(addr)}
		if v, err := s.readUint(filepath.Join(epDir, "bmAttributes"), 16, 8); err == nil {
			ep.Attributes = uint8(v)
		}
		if v, err := s.readUint(filepath.Join(epDir, "wMaxPacketSize"), 16, 16); err == nil {
			ep.MaxPacketSize = uint16(v)
		}
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].Address < eps[j].Address })
	return eps
}

func (s sysfs) readUint(path string, base, bitSize int) (uint64, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return 0, errors.Wrap(err, "afero.ReadFile")
	}
	str := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	v, err := strconv.ParseUint(str, base, bitSize)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	return v, nil
}

// devfsPath is the usbfs node of a device, /dev/bus/usb/BBB/DDD.
func devfsPath(root string, bus, addr int) string {
	return filepath.Join(root, fmt.Sprintf("%03d", bus), fmt.Sprintf("%03d", addr))
}
