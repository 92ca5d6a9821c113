package fastpkt

// <linux/ipv6.h>
//
// struct ipv6hdr {
//     __u8 priority : 4, version : 4;
//     __u8 flow_lbl[3];
//     __be16 payload_len;
//     __u8 nexthdr;
//     __u8 hop_limit;
//     struct in6_addr saddr;
//     struct in6_addr daddr;
// };

// IPv6Header is only decoded to tell multicast chatter apart from boot traffic.
type IPv6Header struct {
	VerTCFlow  uint32 // 4 bits version, 8 bits traffic class, 20 bits flow label
	PayloadLen uint16
	NextHeader uint8
	HopLimit   uint8
	SrcIP      [16]byte
	DstIP      [16]byte
}

func DecodeIPv6Header(data []byte) IPv6Header {
	var b [SizeofIPv6]byte
	copy(b[:], data)

	var ip IPv6Header
	ip.VerTCFlow = be.Uint32(b[0:4])
	ip.PayloadLen = be.Uint16(b[4:6])
	ip.NextHeader = b[6]
	ip.HopLimit = b[7]
	copy(ip.SrcIP[:], b[8:24])
	copy(ip.DstIP[:], b[24:40])
	return ip
}

func (ip *IPv6Header) Encode(b []byte) {
	be.PutUint32(b[0:4], ip.VerTCFlow)
	be.PutUint16(b[4:6], ip.PayloadLen)
	b[6] = ip.NextHeader
	b[7] = ip.HopLimit
	copy(b[8:24], ip.SrcIP[:])
	copy(b[24:40], ip.DstIP[:])
}

// IPv6Option is a hop-by-hop options extension header.
type IPv6Option struct {
	NextHeader uint8
	HdrExtLen  uint8
	Options    [6]byte
}

func DecodeIPv6Option(data []byte) IPv6Option {
	var b [SizeofIPv6Option]byte
	copy(b[:], data)

	var opt IPv6Option
	opt.NextHeader = b[0]
	opt.HdrExtLen = b[1]
	copy(opt.Options[:], b[2:8])
	return opt
}

func (opt *IPv6Option) Encode(b []byte) {
	b[0] = opt.NextHeader
	b[1] = opt.HdrExtLen
	copy(b[2:8], opt.Options[:])
}
