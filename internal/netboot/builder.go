package netboot

import (
	"github.com/zxhio/usbboot/pkg/fastpkt"
	"github.com/zxhio/usbboot/pkg/netaddr"
)

// Addresses handed out on the virtual link.
var (
	DefaultServerIP   = netaddr.IPv4(192, 168, 1, 9)
	DefaultClientIP   = netaddr.IPv4(192, 168, 1, 3)
	DefaultNetmask    = netaddr.IPv4(255, 255, 255, 0)
	DefaultServerName = "BEAGLEBOOT"
)

// MaxServerName is the size of the BOOTP sname field, NUL included.
const MaxServerName = len(fastpkt.BOOTPPacket{}.ServerName)

// Builder composes outbound frames. It holds only the link constants; all
// request derived fields are passed in.
type Builder struct {
	Framing    Framing
	ServerIP   netaddr.IPv4Addr
	ClientIP   netaddr.IPv4Addr
	Netmask    netaddr.IPv4Addr
	ServerName string
}

func NewBuilder(framing Framing) Builder {
	return Builder{
		Framing:    framing,
		ServerIP:   DefaultServerIP,
		ClientIP:   DefaultClientIP,
		Netmask:    DefaultNetmask,
		ServerName: DefaultServerName,
	}
}

func (b *Builder) newBuffer(frameLen int) fastpkt.Buffer {
	return fastpkt.NewBuildBuffer(make([]byte, 0, b.Framing.Prefix()+frameLen))
}

// wrap prepends the transport framing once the ethernet frame is complete.
func (b *Builder) wrap(buf *fastpkt.Buffer) []byte {
	if b.Framing == FramingRNDIS {
		rndis := fastpkt.NewRNDISHeader(buf.Len())
		buf.PushRNDISHeader(&rndis)
	}
	return buf.Bytes()
}

// BootstrapReply answers a BOOTP request. eth and udp are the request's
// headers; the reply swaps their addresses and ports.
func (b *Builder) BootstrapReply(eth fastpkt.EthHeader, udp fastpkt.UDPHeader, req fastpkt.BOOTPPacket, file string) []byte {
	buf := b.newBuffer(fastpkt.SizeofEthernet + fastpkt.SizeofIPv4 + fastpkt.SizeofUDP + fastpkt.SizeofBOOTP)

	reply := fastpkt.BOOTPPacket{
		Op:       fastpkt.BOOTPReply,
		HwType:   fastpkt.BOOTPHwTypeEthernet,
		HwLen:    6,
		Xid:      req.Xid,
		YourIP:   b.ClientIP,
		ServerIP: b.ServerIP,
	}
	reply.SetClientMAC(eth.HwSource)
	reply.SetServerName(b.ServerName)
	reply.SetFile(file)
	reply.SetVendorOptions(b.Netmask, b.ServerIP)
	buf.PushBOOTPPacket(&reply)

	udpReply := udp.Reply(fastpkt.SizeofBOOTP)
	buf.PushUDPHeader(&udpReply)

	ip := fastpkt.NewIPv4Header(b.ServerIP, b.ClientIP, fastpkt.IPProtoUDP, fastpkt.SizeofUDP+fastpkt.SizeofBOOTP)
	buf.PushIPv4Header(&ip)

	ethReply := eth.Reply(fastpkt.EthernetTypeIPv4)
	buf.PushEthHeader(&ethReply)

	return b.wrap(&buf)
}

// ARPReply answers req on behalf of hwAddr, the MAC negotiated for the link.
// eth is the ethernet header the reply mirrors.
func (b *Builder) ARPReply(eth fastpkt.EthHeader, hwAddr netaddr.HwAddr, req fastpkt.ARPHeader) []byte {
	buf := b.newBuffer(fastpkt.SizeofEthernet + fastpkt.SizeofARP)

	arp := req.Reply(hwAddr)
	buf.PushARPHeader(&arp)

	ethReply := eth.Reply(fastpkt.EthernetTypeARP)
	buf.PushEthHeader(&ethReply)

	return b.wrap(&buf)
}

// TFTPData builds the next data block of t and advances its cursor and block
// counter.
func (b *Builder) TFTPData(t *Transfer) []byte {
	chunk := min(fastpkt.TFTPBlockSize, len(t.data)-t.cursor)
	payloadLen := fastpkt.SizeofTFTP + chunk
	buf := b.newBuffer(fastpkt.SizeofEthernet + fastpkt.SizeofIPv4 + fastpkt.SizeofUDP + payloadLen)

	buf.PushPayload(t.data[t.cursor : t.cursor+chunk])
	tftp := fastpkt.TFTPHeader{Opcode: fastpkt.TFTPOpData, Block: uint16(t.block)}
	buf.PushTFTPHeader(&tftp)
	b.pushTransferHeaders(&buf, t, payloadLen)

	t.cursor += chunk
	t.block++
	t.lastChunk = chunk
	return b.wrap(&buf)
}

// TFTPError builds the file not found error for t.
func (b *Builder) TFTPError(t *Transfer) []byte {
	msg := fastpkt.TFTPErrorPayload(fastpkt.TFTPErrMsgNotFound)
	payloadLen := fastpkt.SizeofTFTP + len(msg)
	buf := b.newBuffer(fastpkt.SizeofEthernet + fastpkt.SizeofIPv4 + fastpkt.SizeofUDP + payloadLen)

	buf.PushPayload(msg)
	tftp := fastpkt.TFTPHeader{Opcode: fastpkt.TFTPOpError, Block: fastpkt.TFTPErrFileNotFound}
	buf.PushTFTPHeader(&tftp)
	b.pushTransferHeaders(&buf, t, payloadLen)

	return b.wrap(&buf)
}

func (b *Builder) pushTransferHeaders(buf *fastpkt.Buffer, t *Transfer, payloadLen int) {
	udp := t.udp.Reply(payloadLen)
	buf.PushUDPHeader(&udp)

	ip := fastpkt.NewIPv4Header(t.srcIP, t.dstIP, fastpkt.IPProtoUDP, fastpkt.SizeofUDP+payloadLen)
	buf.PushIPv4Header(&ip)

	buf.PushEthHeader(&t.eth)
}

// RNDISInit is sent as SEND_ENCAPSULATED_COMMAND before any traffic.
func RNDISInit() []byte {
	m := fastpkt.NewRNDISInit()
	return m.Bytes()
}

// RNDISSet enables packet reception on the device.
func RNDISSet() []byte {
	m := fastpkt.NewRNDISSet()
	return m.Bytes()
}
