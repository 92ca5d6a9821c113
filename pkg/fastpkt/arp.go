package fastpkt

import "github.com/zxhio/usbboot/pkg/netaddr"

const (
	ARPHwTypeEthernet uint16 = 1
	ARPRequest        uint16 = 1
	ARPReply          uint16 = 2
)

// <linux/if_arp.h>
//
// struct arphdr {
//     __be16 ar_hrd;        /* format of hardware address	*/
//     __be16 ar_pro;        /* format of protocol address	*/
//     unsigned char ar_hln; /* length of hardware address	*/
//     unsigned char ar_pln; /* length of protocol address	*/
//     __be16 ar_op;         /* ARP opcode (command)		*/
// };
//
// followed by sender/target ethernet and ipv4 addresses.

type ARPHeader struct {
	HwAddrType   uint16
	ProtAddrType uint16
	HwAddrLen    uint8
	ProtAddrLen  uint8
	Operation    uint16
	HwSource     netaddr.HwAddr
	IPSource     netaddr.IPv4Addr
	HwDest       netaddr.HwAddr
	IPDest       netaddr.IPv4Addr
}

func DecodeARPHeader(data []byte) ARPHeader {
	var b [SizeofARP]byte
	copy(b[:], data)

	var arp ARPHeader
	arp.HwAddrType = be.Uint16(b[0:2])
	arp.ProtAddrType = be.Uint16(b[2:4])
	arp.HwAddrLen = b[4]
	arp.ProtAddrLen = b[5]
	arp.Operation = be.Uint16(b[6:8])
	copy(arp.HwSource[:], b[8:14])
	arp.IPSource = netaddr.IPv4Addr(be.Uint32(b[14:18]))
	copy(arp.HwDest[:], b[18:24])
	arp.IPDest = netaddr.IPv4Addr(be.Uint32(b[24:28]))
	return arp
}

func (arp *ARPHeader) Encode(b []byte) {
	be.PutUint16(b[0:2], arp.HwAddrType)
	be.PutUint16(b[2:4], arp.ProtAddrType)
	b[4] = arp.HwAddrLen
	b[5] = arp.ProtAddrLen
	be.PutUint16(b[6:8], arp.Operation)
	copy(b[8:14], arp.HwSource[:])
	be.PutUint32(b[14:18], uint32(arp.IPSource))
	copy(b[18:24], arp.HwDest[:])
	be.PutUint32(b[24:28], uint32(arp.IPDest))
}

func (arp *ARPHeader) Bytes() []byte {
	b := make([]byte, SizeofARP)
	arp.Encode(b)
	return b
}

// Reply answers the request on behalf of hwAddr: the requested target IP
// becomes the sender and the requester becomes the target.
func (arp *ARPHeader) Reply(hwAddr netaddr.HwAddr) ARPHeader {
	return ARPHeader{
		HwAddrType:   ARPHwTypeEthernet,
		ProtAddrType: EthernetTypeIPv4,
		HwAddrLen:    6,
		ProtAddrLen:  4,
		Operation:    ARPReply,
		HwSource:     hwAddr,
		IPSource:     arp.IPDest,
		HwDest:       arp.HwSource,
		IPDest:       arp.IPSource,
	}
}
