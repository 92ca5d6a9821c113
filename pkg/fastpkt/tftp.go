package fastpkt

// RFC 1350 TFTP opcodes.
const (
	TFTPOpRRQ   uint16 = 1
	TFTPOpWRQ   uint16 = 2
	TFTPOpData  uint16 = 3
	TFTPOpAck   uint16 = 4
	TFTPOpError uint16 = 5
)

const (
	TFTPBlockSize = 512
	// Block numbers are 16 bits and start at 1.
	TFTPMaxBlocks = 1<<16 - 1

	TFTPErrFileNotFound uint16 = 1
	TFTPErrMsgNotFound         = "File not found"
)

// TFTPHeader covers DATA, ACK and ERROR packets. For ERROR, Block holds the
// error code.
type TFTPHeader struct {
	Opcode uint16
	Block  uint16
}

func DecodeTFTPHeader(data []byte) TFTPHeader {
	var b [SizeofTFTP]byte
	copy(b[:], data)
	return TFTPHeader{Opcode: be.Uint16(b[0:2]), Block: be.Uint16(b[2:4])}
}

func (h *TFTPHeader) Encode(b []byte) {
	be.PutUint16(b[0:2], h.Opcode)
	be.PutUint16(b[2:4], h.Block)
}

func (h *TFTPHeader) Bytes() []byte {
	b := make([]byte, SizeofTFTP)
	h.Encode(b)
	return b
}

// TFTPRequestFile returns the filename of a RRQ/WRQ packet, the
// null-terminated string following the opcode.
func TFTPRequestFile(data []byte) string {
	if len(data) <= 2 {
		return ""
	}
	return cstring(data[2:])
}

// TFTPErrorPayload is the error message carried after the header,
// null-terminated.
func TFTPErrorPayload(msg string) []byte {
	return append([]byte(msg), 0)
}
