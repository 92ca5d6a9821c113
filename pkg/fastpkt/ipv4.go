package fastpkt

import "github.com/zxhio/usbboot/pkg/netaddr"

// <linux/ip.h>
//
// struct iphdr {
// #if defined(__LITTLE_ENDIAN_BITFIELD)
//     unsigned int ihl : 4, version : 4;
// #elif defined(__BIG_ENDIAN_BITFIELD)
//     unsigned int version : 4, ihl : 4;
// #else
// #error "Please fix <asm/byteorder.h>"
// #endif
//     __u8 tos;        // Type of Service
//     __be16 tot_len;  // Total Length
//     __be16 id;       // Identification
//     __be16 frag_off; // Fragment Offset and Flags
//     __u8 ttl;        // Time to Live
//     __u8 protocol;   // Protocol (TCP, UDP, etc.)
//     __u16 check;     // Header Checksum
//     __be32 saddr;    // Source IP Address
//     __be32 daddr;    // Destination IP Address
// };

const DefaultTTL = 64

type IPv4Header struct {
	VerHdrLen uint8  // 4 bits version, 4 bits header length
	TOS       uint8  // type of service
	Len       uint16 // total length
	ID        uint16 // identification
	FragOff   uint16 // fragment offset
	TTL       uint8  // time to live
	Protocol  uint8  // protocol
	Checksum  uint16 // checksum
	SrcIP     netaddr.IPv4Addr
	DstIP     netaddr.IPv4Addr
}

// NewIPv4Header returns a header without options carrying l4Len bytes.
func NewIPv4Header(src, dst netaddr.IPv4Addr, proto uint8, l4Len int) IPv4Header {
	ip := IPv4Header{
		TTL:      DefaultTTL,
		Protocol: proto,
		Len:      uint16(SizeofIPv4 + l4Len),
		SrcIP:    src,
		DstIP:    dst,
	}
	ip.SetHeaderLen(SizeofIPv4)
	return ip
}

func (ip *IPv4Header) HeaderLen() uint8 {
	return (ip.VerHdrLen & 0x0f) * 4
}

func (ip *IPv4Header) SetHeaderLen(headerLen uint8) {
	// IPv4 version is 4 in high 4 bit
	ip.VerHdrLen = (0x40 & 0xf0) | (headerLen / 4)
}

func DecodeIPv4Header(data []byte) IPv4Header {
	var b [SizeofIPv4]byte
	copy(b[:], data)

	var ip IPv4Header
	ip.VerHdrLen = b[0]
	ip.TOS = b[1]
	ip.Len = be.Uint16(b[2:4])
	ip.ID = be.Uint16(b[4:6])
	ip.FragOff = be.Uint16(b[6:8])
	ip.TTL = b[8]
	ip.Protocol = b[9]
	ip.Checksum = be.Uint16(b[10:12])
	ip.SrcIP = netaddr.IPv4Addr(be.Uint32(b[12:16]))
	ip.DstIP = netaddr.IPv4Addr(be.Uint32(b[16:20]))
	return ip
}

// Encode writes the header and embeds the computed checksum, which is also
// stored back into ip.Checksum.
func (ip *IPv4Header) Encode(b []byte) {
	b[0] = ip.VerHdrLen
	b[1] = ip.TOS
	be.PutUint16(b[2:4], ip.Len)
	be.PutUint16(b[4:6], ip.ID)
	be.PutUint16(b[6:8], ip.FragOff)
	b[8] = ip.TTL
	b[9] = ip.Protocol
	b[10] = 0
	b[11] = 0
	be.PutUint32(b[12:16], uint32(ip.SrcIP))
	be.PutUint32(b[16:20], uint32(ip.DstIP))

	ip.Checksum = Checksum(b[:SizeofIPv4])
	be.PutUint16(b[10:12], ip.Checksum)
}

func (ip *IPv4Header) Bytes() []byte {
	b := make([]byte, SizeofIPv4)
	ip.Encode(b)
	return b
}

// Checksum is the Internet checksum (RFC 1071) of data.
func Checksum(data []byte) uint16 {
	var csum uint32
	for i := 0; i+1 < len(data); i += 2 {
		csum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		csum += uint32(data[len(data)-1]) << 8
	}
	for csum > 0xffff {
		// Add carry to the sum
		csum = (csum >> 16) + (csum & 0xffff)
	}
	// Flip all the bits
	return ^uint16(csum)
}
