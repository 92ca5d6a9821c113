package fastpkt

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
)

func TestUDPHeaderDecode(t *testing.T) {
	testCases := []struct {
		srcPort, dstPort uint16
		payload          []byte
	}{
		{srcPort: 68, dstPort: 67, payload: make([]byte, SizeofBOOTP)},
		{srcPort: 1024, dstPort: 69, payload: []byte{0, 1, 'a', 0}},
		{srcPort: 5353, dstPort: 5353},
	}

	for _, testCase := range testCases {
		layerIPv4 := testLayerIPv4
		layerIPv4.Protocol = layers.IPProtocolUDP
		layerUDP := layers.UDP{SrcPort: layers.UDPPort(testCase.srcPort), DstPort: layers.UDPPort(testCase.dstPort)}
		layerUDP.SetNetworkLayerForChecksum(&layerIPv4)

		buf, err := serialize(&layerUDP, gopacket.Payload(testCase.payload))
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}

		udp := DecodeUDPHeader(buf)
		assert.Equal(t, testCase.srcPort, udp.SrcPort)
		assert.Equal(t, testCase.dstPort, udp.DstPort)
		assert.Equal(t, uint16(SizeofUDP+len(testCase.payload)), udp.Length)

		reply := udp.Reply(len(testCase.payload))
		assert.Equal(t, testCase.dstPort, reply.SrcPort)
		assert.Equal(t, testCase.srcPort, reply.DstPort)
		assert.Equal(t, udp.Length, reply.Length)
		assert.Equal(t, reply, DecodeUDPHeader(reply.Bytes()))
	}
}
