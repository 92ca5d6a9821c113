package fastpkt

import (
	"bytes"

	"github.com/zxhio/usbboot/pkg/netaddr"
)

// RFC 951 BOOTP message, with the vendor area holding RFC 1497 options.
//
//	op(1) htype(1) hlen(1) hops(1) xid(4) secs(2) flags(2)
//	ciaddr(4) yiaddr(4) siaddr(4) giaddr(4)
//	chaddr(16) sname(64) file(128) vend(64)

const (
	BOOTPRequest uint8 = 1
	BOOTPReply   uint8 = 2

	BOOTPHwTypeEthernet uint8 = 1

	// 99.130.83.99
	BOOTPMagicCookie uint32 = 0x63825363

	BOOTPOptPad        uint8 = 0
	BOOTPOptSubnetMask uint8 = 1
	BOOTPOptRouter     uint8 = 3
	BOOTPOptEnd        uint8 = 255
)

type BOOTPPacket struct {
	Op           uint8
	HwType       uint8
	HwLen        uint8
	Hops         uint8
	Xid          uint32
	Secs         uint16
	Flags        uint16
	ClientIP     netaddr.IPv4Addr
	YourIP       netaddr.IPv4Addr
	ServerIP     netaddr.IPv4Addr
	GatewayIP    netaddr.IPv4Addr
	ClientHwAddr [16]byte
	ServerName   [64]byte
	File         [128]byte
	Vendor       [64]byte
}

func DecodeBOOTPPacket(data []byte) BOOTPPacket {
	var b [SizeofBOOTP]byte
	copy(b[:], data)

	var p BOOTPPacket
	p.Op = b[0]
	p.HwType = b[1]
	p.HwLen = b[2]
	p.Hops = b[3]
	p.Xid = be.Uint32(b[4:8])
	p.Secs = be.Uint16(b[8:10])
	p.Flags = be.Uint16(b[10:12])
	p.ClientIP = netaddr.IPv4Addr(be.Uint32(b[12:16]))
	p.YourIP = netaddr.IPv4Addr(be.Uint32(b[16:20]))
	p.ServerIP = netaddr.IPv4Addr(be.Uint32(b[20:24]))
	p.GatewayIP = netaddr.IPv4Addr(be.Uint32(b[24:28]))
	copy(p.ClientHwAddr[:], b[28:44])
	copy(p.ServerName[:], b[44:108])
	copy(p.File[:], b[108:236])
	copy(p.Vendor[:], b[236:300])
	return p
}

func (p *BOOTPPacket) Encode(b []byte) {
	b[0] = p.Op
	b[1] = p.HwType
	b[2] = p.HwLen
	b[3] = p.Hops
	be.PutUint32(b[4:8], p.Xid)
	be.PutUint16(b[8:10], p.Secs)
	be.PutUint16(b[10:12], p.Flags)
	be.PutUint32(b[12:16], uint32(p.ClientIP))
	be.PutUint32(b[16:20], uint32(p.YourIP))
	be.PutUint32(b[20:24], uint32(p.ServerIP))
	be.PutUint32(b[24:28], uint32(p.GatewayIP))
	copy(b[28:44], p.ClientHwAddr[:])
	copy(b[44:108], p.ServerName[:])
	copy(b[108:236], p.File[:])
	copy(b[236:300], p.Vendor[:])
}

func (p *BOOTPPacket) Bytes() []byte {
	b := make([]byte, SizeofBOOTP)
	p.Encode(b)
	return b
}

func (p *BOOTPPacket) ClientMAC() netaddr.HwAddr {
	var mac netaddr.HwAddr
	copy(mac[:], p.ClientHwAddr[:6])
	return mac
}

func (p *BOOTPPacket) SetClientMAC(mac netaddr.HwAddr) {
	p.ClientHwAddr = [16]byte{}
	copy(p.ClientHwAddr[:], mac[:])
}

func (p *BOOTPPacket) SetServerName(name string) {
	p.ServerName = [64]byte{}
	copy(p.ServerName[:len(p.ServerName)-1], name)
}

func (p *BOOTPPacket) SetFile(file string) {
	p.File = [128]byte{}
	copy(p.File[:len(p.File)-1], file)
}

func (p *BOOTPPacket) ServerNameString() string { return cstring(p.ServerName[:]) }
func (p *BOOTPPacket) FileString() string       { return cstring(p.File[:]) }

// SetVendorOptions writes the magic cookie followed by the subnet mask and
// router options into the vendor area.
func (p *BOOTPPacket) SetVendorOptions(mask, router netaddr.IPv4Addr) {
	p.Vendor = [64]byte{}
	v := p.Vendor[:]
	be.PutUint32(v[0:4], BOOTPMagicCookie)
	v[4], v[5] = BOOTPOptSubnetMask, 4
	be.PutUint32(v[6:10], uint32(mask))
	v[10], v[11] = BOOTPOptRouter, 4
	be.PutUint32(v[12:16], uint32(router))
	v[16] = BOOTPOptEnd
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
