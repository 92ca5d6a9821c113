package fastpkt

import "github.com/zxhio/usbboot/pkg/netaddr"

// <linux/if_ether.h>
//
//	struct ethhdr {
//	    unsigned char h_dest[6];
//	    unsigned char h_source[6];
//	    __be16 h_proto;
//	};

type EthHeader struct {
	HwDest   netaddr.HwAddr
	HwSource netaddr.HwAddr
	HwProto  uint16
}

func DecodeEthHeader(data []byte) EthHeader {
	var b [SizeofEthernet]byte
	copy(b[:], data)

	var eth EthHeader
	copy(eth.HwDest[:], b[0:6])
	copy(eth.HwSource[:], b[6:12])
	eth.HwProto = be.Uint16(b[12:14])
	return eth
}

func (eth *EthHeader) Encode(b []byte) {
	copy(b[0:6], eth.HwDest[:])
	copy(b[6:12], eth.HwSource[:])
	be.PutUint16(b[12:14], eth.HwProto)
}

func (eth *EthHeader) Bytes() []byte {
	b := make([]byte, SizeofEthernet)
	eth.Encode(b)
	return b
}

// Reply returns the header of a reply frame with the addresses swapped.
func (eth *EthHeader) Reply(proto uint16) EthHeader {
	return EthHeader{HwDest: eth.HwSource, HwSource: eth.HwDest, HwProto: proto}
}
