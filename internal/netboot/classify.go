package netboot

import (
	"fmt"

	"github.com/zxhio/usbboot/pkg/fastpkt"
)

// Kind names the exchange an inbound frame belongs to.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindARP
	KindBootstrap
	KindTFTP     // read request
	KindTFTPData // acknowledgment, answered with the next data block
	KindIGMP
	KindNetconsole
	KindMDNS
	KindICMPv6
)

var kindToStr = map[Kind]string{
	KindUnrecognized: "unrecognized",
	KindARP:          "arp",
	KindBootstrap:    "bootstrap",
	KindTFTP:         "tftp",
	KindTFTPData:     "tftp_data",
	KindIGMP:         "igmp",
	KindNetconsole:   "netconsole",
	KindMDNS:         "mdns",
	KindICMPv6:       "icmpv6",
}

var strToKind = make(map[string]Kind)

func init() {
	for kind, str := range kindToStr {
		strToKind[str] = kind
	}
}

func (k Kind) String() string {
	s, ok := kindToStr[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return s
}

func ParseKind(s string) (Kind, error) {
	k, ok := strToKind[s]
	if !ok {
		return KindUnrecognized, fmt.Errorf("invalid frame kind: %s", s)
	}
	return k, nil
}

// Actionable reports whether frames of this kind are answered.
func (k Kind) Actionable() bool {
	switch k {
	case KindARP, KindBootstrap, KindTFTP, KindTFTPData:
		return true
	}
	return false
}

// Framing tells whether a device wraps each ethernet frame in an RNDIS
// packet message. It is fixed per device when its session starts.
type Framing int

const (
	FramingRNDIS Framing = iota
	FramingRaw
)

func (f Framing) String() string {
	if f == FramingRaw {
		return "raw"
	}
	return "rndis"
}

// Prefix is the number of bytes preceding the ethernet header.
func (f Framing) Prefix() int {
	if f == FramingRaw {
		return 0
	}
	return fastpkt.SizeofRNDIS
}

// Offsets of each layer inside a frame with IPv4 or IPv6 transport.
type offsets struct {
	eth, l3, udp4, l4payload4, udp6 int
}

func (f Framing) offsets() offsets {
	p := f.Prefix()
	return offsets{
		eth:        p,
		l3:         p + fastpkt.SizeofEthernet,
		udp4:       p + fastpkt.SizeofEthernet + fastpkt.SizeofIPv4,
		l4payload4: p + fastpkt.SizeofEthernet + fastpkt.SizeofIPv4 + fastpkt.SizeofUDP,
		udp6:       p + fastpkt.SizeofEthernet + fastpkt.SizeofIPv6,
	}
}

// at returns frame[off:], or nil when the frame is shorter than off.
func at(frame []byte, off int) []byte {
	if off >= len(frame) {
		return nil
	}
	return frame[off:]
}

// Classify inspects a raw inbound frame. Bytes missing from a short frame
// read as zero, so a truncated frame is classified by what it does carry.
func Classify(frame []byte, framing Framing) Kind {
	off := framing.offsets()

	eth := fastpkt.DecodeEthHeader(at(frame, off.eth))
	switch eth.HwProto {
	case fastpkt.EthernetTypeARP:
		return KindARP

	case fastpkt.EthernetTypeIPv4:
		ip := fastpkt.DecodeIPv4Header(at(frame, off.l3))
		switch ip.Protocol {
		case fastpkt.IPProtoIGMP:
			return KindIGMP
		case fastpkt.IPProtoUDP:
			udp := fastpkt.DecodeUDPHeader(at(frame, off.udp4))
			return classifyUDP(udp, at(frame, off.l4payload4))
		}

	case fastpkt.EthernetTypeIPv6:
		ip := fastpkt.DecodeIPv6Header(at(frame, off.l3))
		switch ip.NextHeader {
		case fastpkt.IPProtoHopByHop:
			opt := fastpkt.DecodeIPv6Option(at(frame, off.udp6))
			if opt.NextHeader == fastpkt.IPProtoICMPv6 {
				return KindICMPv6
			}
		case fastpkt.IPProtoUDP:
			udp := fastpkt.DecodeUDPHeader(at(frame, off.udp6))
			if udp.SrcPort == fastpkt.PortMDNS && udp.DstPort == fastpkt.PortMDNS {
				return KindMDNS
			}
		}
	}
	return KindUnrecognized
}

func classifyUDP(udp fastpkt.UDPHeader, payload []byte) Kind {
	if udp.SrcPort == fastpkt.PortBOOTPClient && udp.DstPort == fastpkt.PortBOOTPServer {
		return KindBootstrap
	}
	if udp.DstPort == fastpkt.PortTFTP {
		// only the low opcode byte is inspected
		switch fastpkt.DecodeTFTPHeader(payload).Opcode & 0xff {
		case fastpkt.TFTPOpRRQ:
			return KindTFTP
		case fastpkt.TFTPOpAck:
			return KindTFTPData
		}
	}
	if udp.DstPort == fastpkt.PortNetconsole {
		return KindNetconsole
	}
	if udp.SrcPort == fastpkt.PortMDNS && udp.DstPort == fastpkt.PortMDNS {
		return KindMDNS
	}
	return KindUnrecognized
}
