package netboot

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zxhio/usbboot/pkg/fastpkt"
	"github.com/zxhio/usbboot/pkg/netaddr"
)

// MaxFileSize is the largest file a TFTP transfer without block number
// rollover can carry.
const MaxFileSize = fastpkt.TFTPMaxBlocks*fastpkt.TFTPBlockSize - 1

var ErrFileTooLarge = errors.Errorf("file larger than %d bytes", MaxFileSize)

// FileReader loads boot images by name. Any error means the file cannot be
// served.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

type State int

const (
	StateUninitialized State = iota
	StateBootstrapServed
	StateAddressResolved
	StateFileOpen
	StateFileNotFound
	StateTransferring
	StateComplete
)

var stateToStr = map[State]string{
	StateUninitialized:   "uninitialized",
	StateBootstrapServed: "bootstrap-served",
	StateAddressResolved: "address-resolved",
	StateFileOpen:        "file-open",
	StateFileNotFound:    "file-not-found",
	StateTransferring:    "transferring",
	StateComplete:        "complete",
}

func (s State) String() string {
	str, ok := stateToStr[s]
	if !ok {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return str
}

// Action tells the device task what to do with a reply.
type Action int

const (
	// ActionNone drops the frame.
	ActionNone Action = iota
	// ActionSend transfers Reply.Frame and keeps serving.
	ActionSend
	// ActionAbort transfers Reply.Frame, then closes and forgets the device.
	ActionAbort
	// ActionFinish closes the device, the transfer is complete.
	ActionFinish
)

type Reply struct {
	Kind   Kind
	Action Action
	Frame  []byte
}

// Transfer is the TFTP read in progress.
type Transfer struct {
	File string
	// NotFound is set when the file cannot be served, Err tells why.
	NotFound bool
	Err      error

	udp          fastpkt.UDPHeader // read request, ports are mirrored
	eth          fastpkt.EthHeader // reply header, fixed for the transfer
	srcIP, dstIP netaddr.IPv4Addr

	data      []byte
	cursor    int
	block     int // next block number, starts at 1
	blocks    int
	lastChunk int
}

// Blocks is the number of data blocks, ceil((len+1)/512). A file that is an
// exact multiple of the block size ends with an empty block.
func (t *Transfer) Blocks() int { return t.blocks }
func (t *Transfer) Size() int   { return len(t.data) }
func (t *Transfer) Sent() int   { return t.cursor }

// LastChunk is the payload length of the last data block built.
func (t *Transfer) LastChunk() int { return t.lastChunk }

// Done reports whether every block was built.
func (t *Transfer) Done() bool { return t.block > t.blocks }

// Session is the per-device protocol context. It is owned by a single device
// task and never shared.
type Session struct {
	builder  Builder
	bootFile string
	files    FileReader

	state    State
	ether    fastpkt.EthHeader // bootstrap request
	hasEther bool
	arp      fastpkt.ARPHeader // last ARP request
	hasARP   bool
	transfer *Transfer
}

type SessionOpt func(*Builder)

func WithServerIP(ip netaddr.IPv4Addr) SessionOpt {
	return func(b *Builder) { b.ServerIP = ip }
}

func WithClientIP(ip netaddr.IPv4Addr) SessionOpt {
	return func(b *Builder) { b.ClientIP = ip }
}

func WithNetmask(mask netaddr.IPv4Addr) SessionOpt {
	return func(b *Builder) { b.Netmask = mask }
}

func WithServerName(name string) SessionOpt {
	return func(b *Builder) { b.ServerName = name }
}

// NewSession starts a session serving bootFile in bootstrap replies. framing
// must come from the device class of the device being served.
func NewSession(framing Framing, bootFile string, files FileReader, opts ...SessionOpt) *Session {
	b := NewBuilder(framing)
	for _, opt := range opts {
		opt(&b)
	}
	return &Session{builder: b, bootFile: bootFile, files: files}
}

func (s *Session) Framing() Framing    { return s.builder.Framing }
func (s *Session) BootFile() string    { return s.bootFile }
func (s *Session) State() State        { return s.state }
func (s *Session) Transfer() *Transfer { return s.transfer }

// Handle classifies one inbound frame and builds the reply, if any.
func (s *Session) Handle(frame []byte) Reply {
	kind := Classify(frame, s.builder.Framing)
	r := Reply{Kind: kind}

	switch kind {
	case KindBootstrap:
		r.Frame = s.handleBootstrap(frame)
		r.Action = ActionSend
	case KindARP:
		r.Frame, r.Action = s.handleARP(frame)
	case KindTFTP:
		r.Frame, r.Action = s.handleReadRequest(frame)
	case KindTFTPData:
		r.Frame, r.Action = s.handleAck()
	}
	return r
}

func (s *Session) handleBootstrap(frame []byte) []byte {
	off := s.builder.Framing.offsets()
	s.ether = fastpkt.DecodeEthHeader(at(frame, off.eth))
	s.hasEther = true
	udp := fastpkt.DecodeUDPHeader(at(frame, off.udp4))
	req := fastpkt.DecodeBOOTPPacket(at(frame, off.l4payload4))

	if s.state < StateBootstrapServed {
		s.state = StateBootstrapServed
	}
	return s.builder.BootstrapReply(s.ether, udp, req, s.bootFile)
}

func (s *Session) handleARP(frame []byte) ([]byte, Action) {
	off := s.builder.Framing.offsets()
	eth := fastpkt.DecodeEthHeader(at(frame, off.eth))
	arp := fastpkt.DecodeARPHeader(at(frame, off.l3))
	if arp.Operation != fastpkt.ARPRequest {
		return nil, ActionNone
	}

	s.arp = arp
	s.hasARP = true
	if s.state < StateAddressResolved {
		s.state = StateAddressResolved
	}
	link := s.linkEther(eth)
	return s.builder.ARPReply(link, link.HwDest, arp), ActionSend
}

// linkEther is the ethernet header negotiated by the bootstrap exchange, or
// the request's own header when the device skipped it.
func (s *Session) linkEther(req fastpkt.EthHeader) fastpkt.EthHeader {
	if s.hasEther {
		return s.ether
	}
	return req
}

func (s *Session) handleReadRequest(frame []byte) ([]byte, Action) {
	off := s.builder.Framing.offsets()
	eth := fastpkt.DecodeEthHeader(at(frame, off.eth))
	link := s.linkEther(eth)

	t := &Transfer{
		File:  fastpkt.TFTPRequestFile(at(frame, off.l4payload4)),
		udp:   fastpkt.DecodeUDPHeader(at(frame, off.udp4)),
		eth:   link.Reply(fastpkt.EthernetTypeIPv4),
		srcIP: s.builder.ServerIP,
		dstIP: s.builder.ClientIP,
		block: 1,
	}
	if s.hasARP {
		t.srcIP, t.dstIP = s.arp.IPDest, s.arp.IPSource
	}
	s.transfer = t

	data, err := s.files.ReadFile(t.File)
	if err != nil {
		t.NotFound = true
		t.Err = err
		s.state = StateFileNotFound
		return s.builder.TFTPError(t), ActionAbort
	}
	blocks := (len(data) + 1 + fastpkt.TFTPBlockSize - 1) / fastpkt.TFTPBlockSize
	if blocks > fastpkt.TFTPMaxBlocks {
		t.NotFound = true
		t.Err = errors.Wrapf(ErrFileTooLarge, "%s has %d bytes", t.File, len(data))
		s.state = StateFileNotFound
		return s.builder.TFTPError(t), ActionAbort
	}
	t.data = data
	t.blocks = blocks
	s.state = StateFileOpen
	return s.nextBlock(), ActionSend
}

func (s *Session) handleAck() ([]byte, Action) {
	t := s.transfer
	if t == nil || t.NotFound {
		return nil, ActionNone
	}
	if t.Done() {
		s.state = StateComplete
		return nil, ActionFinish
	}
	return s.nextBlock(), ActionSend
}

func (s *Session) nextBlock() []byte {
	frame := s.builder.TFTPData(s.transfer)
	s.state = StateTransferring
	if s.transfer.lastChunk < fastpkt.TFTPBlockSize {
		s.state = StateComplete
	}
	return frame
}
