package fastpkt

import (
	"encoding/binary"
)

// Fixed wire sizes of every header carried over the virtual link.
const (
	SizeofRNDIS      = 44 // rndis_packet_msg
	SizeofEthernet   = 14 // sizeof(struct ethhdr)
	SizeofARP        = 28 // struct arphdr + ethernet/ipv4 addresses
	SizeofIPv4       = 20 // sizeof(struct iphdr), no options
	SizeofIPv6       = 40 // sizeof(struct ipv6hdr)
	SizeofIPv6Option = 8  // minimal hop-by-hop extension header
	SizeofUDP        = 8  // sizeof(struct udphdr)
	SizeofTFTP       = 4  // opcode + block/error code
	SizeofBOOTP      = 300
)

// <linux/if_ether.h>
const (
	EthernetTypeIPv4 uint16 = 0x0800
	EthernetTypeARP  uint16 = 0x0806
	EthernetTypeIPv6 uint16 = 0x86DD
)

// IP protocol numbers, also used as IPv6 next header values.
const (
	IPProtoHopByHop uint8 = 0
	IPProtoIGMP     uint8 = 2
	IPProtoUDP      uint8 = 17
	IPProtoICMPv6   uint8 = 0x3A
)

// Well known UDP ports seen on the boot link.
const (
	PortBOOTPServer uint16 = 67
	PortBOOTPClient uint16 = 68
	PortTFTP        uint16 = 69
	PortNetconsole  uint16 = 6666
	PortMDNS        uint16 = 5353
)

// Decoders copy the header into a zero padded array of its fixed size, so they
// never read past the header and never fail on a short buffer.
var (
	be = binary.BigEndian
	le = binary.LittleEndian
)
