package netaddr

import (
	"net"
)

// HwAddr is an ethernet address as carried in Ethernet, ARP and BOOTP headers.
type HwAddr [6]byte

var BroadcastHwAddr = HwAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (addr HwAddr) String() string {
	return net.HardwareAddr(addr[:]).String()
}

func (addr *HwAddr) Set(s string) error {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return err
	}
	if len(mac) != len(addr) {
		return &net.AddrError{Err: "not an ethernet address", Addr: s}
	}
	copy(addr[:], mac)
	return nil
}
