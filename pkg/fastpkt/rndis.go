package fastpkt

// Remote NDIS messages. Unlike the network headers they wrap, every RNDIS
// field is little-endian.

const (
	RNDISMsgPacket     uint32 = 0x00000001
	RNDISMsgInitialize uint32 = 0x00000002
	RNDISMsgSet        uint32 = 0x00000005

	RNDISMajorVersion    uint32 = 1
	RNDISMinorVersion    uint32 = 0
	RNDISMaxTransferSize uint32 = 0x4000

	// OID_GEN_CURRENT_PACKET_FILTER
	RNDISOIDPacketFilter uint32 = 0x0001010E
	// directed | multicast | broadcast | promiscuous
	RNDISPacketFilter uint32 = 0x0000002D

	SizeofRNDISInit = 24
	SizeofRNDISSet  = 32
)

// RNDISHeader is the rndis_packet_msg carrying one ethernet frame.
type RNDISHeader struct {
	MessageType         uint32
	MessageLength       uint32
	DataOffset          uint32 // from the start of the DataOffset field
	DataLength          uint32
	OOBDataOffset       uint32
	OOBDataLength       uint32
	NumOOBDataElements  uint32
	PerPacketInfoOffset uint32
	PerPacketInfoLength uint32
	VcHandle            uint32
	Reserved            uint32
}

// NewRNDISHeader wraps a frame of dataLen bytes.
func NewRNDISHeader(dataLen int) RNDISHeader {
	return RNDISHeader{
		MessageType:   RNDISMsgPacket,
		MessageLength: uint32(SizeofRNDIS + dataLen),
		DataOffset:    SizeofRNDIS - 8,
		DataLength:    uint32(dataLen),
	}
}

func DecodeRNDISHeader(data []byte) RNDISHeader {
	var b [SizeofRNDIS]byte
	copy(b[:], data)

	var h RNDISHeader
	fields := h.fields()
	for i, f := range fields {
		*f = le.Uint32(b[i*4:])
	}
	return h
}

func (h *RNDISHeader) Encode(b []byte) {
	for i, f := range h.fields() {
		le.PutUint32(b[i*4:], *f)
	}
}

func (h *RNDISHeader) Bytes() []byte {
	b := make([]byte, SizeofRNDIS)
	h.Encode(b)
	return b
}

func (h *RNDISHeader) fields() [SizeofRNDIS / 4]*uint32 {
	return [...]*uint32{
		&h.MessageType, &h.MessageLength, &h.DataOffset, &h.DataLength,
		&h.OOBDataOffset, &h.OOBDataLength, &h.NumOOBDataElements,
		&h.PerPacketInfoOffset, &h.PerPacketInfoLength, &h.VcHandle, &h.Reserved,
	}
}

// RNDISInit is REMOTE_NDIS_INITIALIZE_MSG.
type RNDISInit struct {
	MessageType     uint32
	MessageLength   uint32
	RequestID       uint32
	MajorVersion    uint32
	MinorVersion    uint32
	MaxTransferSize uint32
}

func NewRNDISInit() RNDISInit {
	return RNDISInit{
		MessageType:     RNDISMsgInitialize,
		MessageLength:   SizeofRNDISInit,
		RequestID:       1,
		MajorVersion:    RNDISMajorVersion,
		MinorVersion:    RNDISMinorVersion,
		MaxTransferSize: RNDISMaxTransferSize,
	}
}

func DecodeRNDISInit(data []byte) RNDISInit {
	var b [SizeofRNDISInit]byte
	copy(b[:], data)
	return RNDISInit{
		MessageType:     le.Uint32(b[0:]),
		MessageLength:   le.Uint32(b[4:]),
		RequestID:       le.Uint32(b[8:]),
		MajorVersion:    le.Uint32(b[12:]),
		MinorVersion:    le.Uint32(b[16:]),
		MaxTransferSize: le.Uint32(b[20:]),
	}
}

func (m *RNDISInit) Bytes() []byte {
	b := make([]byte, SizeofRNDISInit)
	le.PutUint32(b[0:], m.MessageType)
	le.PutUint32(b[4:], m.MessageLength)
	le.PutUint32(b[8:], m.RequestID)
	le.PutUint32(b[12:], m.MajorVersion)
	le.PutUint32(b[16:], m.MinorVersion)
	le.PutUint32(b[20:], m.MaxTransferSize)
	return b
}

// RNDISSet is REMOTE_NDIS_SET_MSG with a single 4 byte value, used to set the
// packet filter.
type RNDISSet struct {
	MessageType    uint32
	MessageLength  uint32
	RequestID      uint32
	OID            uint32
	InfoBufLength  uint32
	InfoBufOffset  uint32 // from the start of the RequestID field
	DeviceVcHandle uint32
	Value          uint32
}

func NewRNDISSet() RNDISSet {
	return RNDISSet{
		MessageType:   RNDISMsgSet,
		MessageLength: SizeofRNDISSet,
		RequestID:     2,
		OID:           RNDISOIDPacketFilter,
		InfoBufLength: 4,
		InfoBufOffset: 20,
		Value:         RNDISPacketFilter,
	}
}

func DecodeRNDISSet(data []byte) RNDISSet {
	var b [SizeofRNDISSet]byte
	copy(b[:], data)
	return RNDISSet{
		MessageType:    le.Uint32(b[0:]),
		MessageLength:  le.Uint32(b[4:]),
		RequestID:      le.Uint32(b[8:]),
		OID:            le.Uint32(b[12:]),
		InfoBufLength:  le.Uint32(b[16:]),
		InfoBufOffset:  le.Uint32(b[20:]),
		DeviceVcHandle: le.Uint32(b[24:]),
		Value:          le.Uint32(b[28:]),
	}
}

func (m *RNDISSet) Bytes() []byte {
	b := make([]byte, SizeofRNDISSet)
	le.PutUint32(b[0:], m.MessageType)
	le.PutUint32(b[4:], m.MessageLength)
	le.PutUint32(b[8:], m.RequestID)
	le.PutUint32(b[12:], m.OID)
	le.PutUint32(b[16:], m.InfoBufLength)
	le.PutUint32(b[20:], m.InfoBufOffset)
	le.PutUint32(b[24:], m.DeviceVcHandle)
	le.PutUint32(b[28:], m.Value)
	return b
}
