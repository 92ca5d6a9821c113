package fastpkt

// Buffer builds a frame from the innermost payload outwards: each push
// prepends one header in front of what is already in the buffer.
type Buffer struct {
	buf   []byte
	start int
}

// NewBuildBuffer
// return value instead of pointer, in order to avoid memory allocation
func NewBuildBuffer(data []byte) Buffer {
	return Buffer{buf: data[:cap(data)], start: cap(data)}
}

func (b *Buffer) alloc(n int) []byte {
	b.start -= n
	return b.buf[b.start : b.start+n]
}

func (b *Buffer) Bytes() []byte { return b.buf[b.start:] }
func (b *Buffer) Len() int      { return len(b.buf) - b.start }

func (b *Buffer) AllocPayload(n int) []byte { return b.alloc(n) }

func (b *Buffer) PushPayload(data []byte)        { copy(b.alloc(len(data)), data) }
func (b *Buffer) PushEthHeader(h *EthHeader)     { h.Encode(b.alloc(SizeofEthernet)) }
func (b *Buffer) PushARPHeader(h *ARPHeader)     { h.Encode(b.alloc(SizeofARP)) }
func (b *Buffer) PushIPv4Header(h *IPv4Header)   { h.Encode(b.alloc(SizeofIPv4)) }
func (b *Buffer) PushUDPHeader(h *UDPHeader)     { h.Encode(b.alloc(SizeofUDP)) }
func (b *Buffer) PushTFTPHeader(h *TFTPHeader)   { h.Encode(b.alloc(SizeofTFTP)) }
func (b *Buffer) PushBOOTPPacket(p *BOOTPPacket) { p.Encode(b.alloc(SizeofBOOTP)) }
func (b *Buffer) PushRNDISHeader(h *RNDISHeader) { h.Encode(b.alloc(SizeofRNDIS)) }
