package fastpkt

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

type formatOpts struct {
	showEthernet  bool
	showTimestamp bool
	linkPrefix    int
	parentLayer   gopacket.Layer
}

type FormatOpt func(*formatOpts)

func WithFormatEthernet() FormatOpt {
	return func(o *formatOpts) { o.showEthernet = true }
}

func WithFormatTimestamp() FormatOpt {
	return func(o *formatOpts) { o.showTimestamp = true }
}

// WithFormatLinkPrefix skips n bytes of transport framing before the ethernet header.
func WithFormatLinkPrefix(n int) FormatOpt {
	return func(o *formatOpts) { o.linkPrefix = n }
}

func WithFormatParentLayer(parent gopacket.Layer) FormatOpt {
	return func(o *formatOpts) { o.parentLayer = parent }
}

type FormatDelimiter string

const (
	FormatDelimiterNone    FormatDelimiter = ""
	FormatDelimiterSpace   FormatDelimiter = " "
	FormatDelimiterComma   FormatDelimiter = ", "
	FormatDelimiterColon   FormatDelimiter = ": "
	FormatDelimiterNewline FormatDelimiter = "\n"
)

type LayerFormatter interface {
	LayerType() gopacket.LayerType
	Format(layer gopacket.Layer, opts ...FormatOpt) (string, FormatDelimiter)
}

var formatters map[gopacket.LayerType]LayerFormatter

func init() {
	formatters = make(map[gopacket.LayerType]LayerFormatter)

	Register(LayerFormatterEthernet{})
	Register(LayerFormatterARP{})
	Register(LayerFormatterIPv4{})
	Register(LayerFormatterIPv6{})
	Register(LayerFormatterUDP{})
	Register(LayerFormatterDHCPv4{})
}

func Register(layer LayerFormatter) {
	formatters[layer.LayerType()] = layer
}

func GetLayerFormatter(layerType gopacket.LayerType) (LayerFormatter, bool) {
	formatter, ok := formatters[layerType]
	return formatter, ok
}

// 02:42:6d:09:05:c4 > 02:42:ac:11:00:0a, ethertype IPv4 (0x0800), length 98:
type LayerFormatterEthernet struct{}

func (LayerFormatterEthernet) LayerType() gopacket.LayerType { return layers.LayerTypeEthernet }

func (LayerFormatterEthernet) Format(layer gopacket.Layer, opts ...FormatOpt) (string, FormatDelimiter) {
	var o formatOpts
	for _, opt := range opts {
		opt(&o)
	}

	eth := layer.(*layers.Ethernet)

	if o.showEthernet {
		return fmt.Sprintf("%s > %s, ethertype %s (0x%04x), length %d",
			eth.SrcMAC, eth.DstMAC, eth.EthernetType, int(eth.EthernetType), len(eth.Contents)+len(eth.Payload)), FormatDelimiterColon
	}

	if eth.EthernetType == layers.EthernetTypeIPv4 ||
		eth.EthernetType == layers.EthernetTypeIPv6 ||
		eth.EthernetType == layers.EthernetTypeARP {
		return eth.EthernetType.String(), FormatDelimiterSpace
	}

	// not show anything
	return "", FormatDelimiterNone
}

// Request who-has 172.17.0.1 tell 172.17.0.10, length 28
// Reply 172.17.0.1 is-at 02:42:6d:09:05:c4, length 28
type LayerFormatterARP struct{}

func (LayerFormatterARP) LayerType() gopacket.LayerType { return layers.LayerTypeARP }

func (LayerFormatterARP) Format(layer gopacket.Layer, opts ...FormatOpt) (string, FormatDelimiter) {
	arp := layer.(*layers.ARP)
	var s string
	switch arp.Operation {
	case layers.ARPRequest:
		s = fmt.Sprintf("Request who-has %s tell %s, length %d",
			net.IP(arp.DstProtAddress), net.IP(arp.SourceProtAddress), len(arp.Payload)+len(arp.Contents))
	case layers.ARPReply:
		s = fmt.Sprintf("Reply %s is-at %s, length %d",
			net.IP(arp.SourceProtAddress), net.HardwareAddr(arp.SourceHwAddress), len(arp.Payload)+len(arp.Contents))
	default:
		s = fmt.Sprintf("unknown arp operation %d", arp.Operation)
	}
	return s, FormatDelimiterNone
}

// 172.17.0.1 > 172.17.0.10
// 172.17.0.1.80 > 172.17.0.10.35912
type LayerFormatterIPv4 struct{}

func (LayerFormatterIPv4) LayerType() gopacket.LayerType { return layers.LayerTypeIPv4 }

func (LayerFormatterIPv4) Format(layer gopacket.Layer, opts ...FormatOpt) (string, FormatDelimiter) {
	ipv4 := layer.(*layers.IPv4)
	if ipv4.NextLayerType() == layers.LayerTypeTCP || ipv4.NextLayerType() == layers.LayerTypeUDP {
		// format in next layer with port
		return "", FormatDelimiterNone
	}
	return fmt.Sprintf("%s > %s", ipv4.SrcIP, ipv4.DstIP), FormatDelimiterColon
}

// fe80::782:bca7:c7d3:c551.59807 > ff02::1:3.5355
type LayerFormatterIPv6 struct{}

func (LayerFormatterIPv6) LayerType() gopacket.LayerType { return layers.LayerTypeIPv6 }

func (LayerFormatterIPv6) Format(layer gopacket.Layer, _ ...FormatOpt) (string, FormatDelimiter) {
	ipv6 := layer.(*layers.IPv6)
	if ipv6.NextLayerType() == layers.LayerTypeTCP || ipv6.NextLayerType() == layers.LayerTypeUDP {
		// format in next layer with port
		return "", FormatDelimiterNone
	}
	return fmt.Sprintf("%s > %s", ipv6.SrcIP, ipv6.DstIP), FormatDelimiterColon
}

// 192.168.1.3.68 > 255.255.255.255.67: BOOTP/DHCP, Request from 00:11:22:33:44:55, length 300
// 192.168.1.3.1024 > 192.168.1.9.69: TFTP, length 26, RRQ "u-boot-spl.bin"
// UDP, length 3
type LayerFormatterUDP struct{}

func (LayerFormatterUDP) LayerType() gopacket.LayerType { return layers.LayerTypeUDP }

func (LayerFormatterUDP) Format(layer gopacket.Layer, opts ...FormatOpt) (string, FormatDelimiter) {
	udp := layer.(*layers.UDP)

	var o formatOpts
	for _, opt := range opts {
		opt(&o)
	}

	b := strings.Builder{}
	if o.parentLayer != nil {
		if o.parentLayer.LayerType() == layers.LayerTypeIPv4 {
			ipv4 := o.parentLayer.(*layers.IPv4)
			b.WriteString(fmt.Sprintf("%s.%d > %s.%d: ", ipv4.SrcIP, udp.SrcPort, ipv4.DstIP, udp.DstPort))
		} else if o.parentLayer.LayerType() == layers.LayerTypeIPv6 {
			ipv6 := o.parentLayer.(*layers.IPv6)
			b.WriteString(fmt.Sprintf("%s.%d > %s.%d: ", ipv6.SrcIP, udp.SrcPort, ipv6.DstIP, udp.DstPort))
		}
	}
	if udp.NextLayerType() != gopacket.LayerTypePayload {
		// format in next layer
		return b.String(), FormatDelimiterNone
	}

	if uint16(udp.SrcPort) == PortTFTP || uint16(udp.DstPort) == PortTFTP {
		b.WriteString(formatTFTP(udp.Payload))
	} else {
		b.WriteString(fmt.Sprintf("UDP, length %d", len(udp.Payload)))
	}
	return b.String(), FormatDelimiterNone
}

func formatTFTP(payload []byte) string {
	tftp := DecodeTFTPHeader(payload)
	s := fmt.Sprintf("TFTP, length %d", len(payload))
	switch tftp.Opcode {
	case TFTPOpRRQ:
		return s + fmt.Sprintf(", RRQ %q", TFTPRequestFile(payload))
	case TFTPOpData:
		return s + fmt.Sprintf(", DATA block %d", tftp.Block)
	case TFTPOpAck:
		return s + fmt.Sprintf(", ACK block %d", tftp.Block)
	case TFTPOpError:
		return s + fmt.Sprintf(", ERROR %d", tftp.Block)
	}
	return s + fmt.Sprintf(", opcode %d", tftp.Opcode)
}

// BOOTP/DHCP, Request from 00:11:22:33:44:55, length 300
// BOOTP/DHCP, Reply, file "u-boot-spl.bin", length 300
type LayerFormatterDHCPv4 struct{}

func (LayerFormatterDHCPv4) LayerType() gopacket.LayerType { return layers.LayerTypeDHCPv4 }

func (LayerFormatterDHCPv4) Format(layer gopacket.Layer, _ ...FormatOpt) (string, FormatDelimiter) {
	dhcp := layer.(*layers.DHCPv4)
	length := len(dhcp.Contents) + len(dhcp.Payload)
	if dhcp.Operation == layers.DHCPOpRequest {
		return fmt.Sprintf("BOOTP/DHCP, Request from %s, length %d", dhcp.ClientHWAddr, length), FormatDelimiterNone
	}
	return fmt.Sprintf("BOOTP/DHCP, Reply, file %q, length %d", cstring(dhcp.File), length), FormatDelimiterNone
}

func FormatDumpTime(t time.Time) string {
	return t.Local().Format("15:04:05.000000")
}

func Format(data []byte, opts ...FormatOpt) string {
	var (
		parent gopacket.Layer
		b      strings.Builder
		delim  FormatDelimiter
	)

	var o formatOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.showTimestamp {
		b.WriteString(FormatDumpTime(time.Now()))
		b.WriteByte(' ')
	}
	if o.linkPrefix > 0 {
		if len(data) < o.linkPrefix {
			return b.String() + fmt.Sprintf("truncated frame, length %d", len(data))
		}
		data = data[o.linkPrefix:]
	}

	p := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	for _, layer := range p.Layers() {
		var (
			s string
			d FormatDelimiter
		)

		f, ok := GetLayerFormatter(layer.LayerType())
		if ok {
			s, d = f.Format(layer, append(opts, WithFormatParentLayer(parent))...)
		} else if layer.LayerType() != gopacket.LayerTypePayload {
			s = layer.LayerType().String()
			d = FormatDelimiterComma
		} else {
			continue
		}

		b.WriteString(string(delim))
		b.WriteString(s)
		delim = d
		parent = layer
	}
	return b.String()
}
