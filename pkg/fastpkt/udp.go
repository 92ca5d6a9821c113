package fastpkt

// <linux/udp.h>
//
// struct udphdr {
//     __be16 source;
//     __be16 dest;
//     __be16 len;
//     __sum16 check;
// };

// UDPHeader checksum is left zero on the boot link.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
	Check   uint16
}

func NewUDPHeader(src, dst uint16, payloadLen int) UDPHeader {
	return UDPHeader{SrcPort: src, DstPort: dst, Length: uint16(SizeofUDP + payloadLen)}
}

func DecodeUDPHeader(data []byte) UDPHeader {
	var b [SizeofUDP]byte
	copy(b[:], data)
	return UDPHeader{
		SrcPort: be.Uint16(b[0:2]),
		DstPort: be.Uint16(b[2:4]),
		Length:  be.Uint16(b[4:6]),
		Check:   be.Uint16(b[6:8]),
	}
}

func (udp *UDPHeader) Encode(b []byte) {
	be.PutUint16(b[0:2], udp.SrcPort)
	be.PutUint16(b[2:4], udp.DstPort)
	be.PutUint16(b[4:6], udp.Length)
	be.PutUint16(b[6:8], udp.Check)
}

func (udp *UDPHeader) Bytes() []byte {
	b := make([]byte, SizeofUDP)
	udp.Encode(b)
	return b
}

// Reply returns the header of a reply datagram with the ports swapped.
func (udp *UDPHeader) Reply(payloadLen int) UDPHeader {
	return NewUDPHeader(udp.DstPort, udp.SrcPort, payloadLen)
}
