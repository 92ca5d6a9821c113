package boot

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxhio/usbboot/internal/bootfile"
	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/internal/usb"
	"github.com/zxhio/usbboot/internal/usb/usbtest"
	"github.com/zxhio/usbboot/pkg/fastpkt"
)

const waitTimeout = 2 * time.Second

var (
	testDeviceMAC = net.HardwareAddr{0xc8, 0xa0, 0x30, 0xb4, 0x11, 0x02}
	testBroadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

func dataInterfaceDesc() usb.InterfaceDesc {
	return usb.InterfaceDesc{
		Number: 1,
		Class:  0x0a,
		Endpoints: []usb.EndpointDesc{
			{Address: 0x81, Attributes: 0x02, MaxPacketSize: 512},
			{Address: 0x02, Attributes: 0x02, MaxPacketSize: 512},
		},
	}
}

func rndisInterfaces() []usb.InterfaceDesc {
	return []usb.InterfaceDesc{
		{Number: 0, Class: 0xe0, SubClass: 0x01, Protocol: 0x03, Endpoints: []usb.EndpointDesc{{Address: 0x83, Attributes: 0x03, MaxPacketSize: 8}}},
		dataInterfaceDesc(),
	}
}

func rawInterfaces() []usb.InterfaceDesc {
	return []usb.InterfaceDesc{
		{Number: 0, Class: 0x02, SubClass: 0x06},
		dataInterfaceDesc(),
	}
}

func romDevice(addr int, port string, ifaces []usb.InterfaceDesc) usb.DeviceInfo {
	return usb.DeviceInfo{
		Bus: 1, Address: addr, PortPath: port,
		VendorID: VendorTI, ProductID: ProductROM, NumConfigurations: 1,
		Interfaces: ifaces,
	}
}

func splDevice(addr int, port string, ifaces []usb.InterfaceDesc) usb.DeviceInfo {
	return usb.DeviceInfo{
		Bus: 1, Address: addr, PortPath: port,
		VendorID: VendorTI, ProductID: ProductSPL, NumConfigurations: 2,
		Interfaces: ifaces,
	}
}

func massStorageDevice(addr int, port string) usb.DeviceInfo {
	return usb.DeviceInfo{
		Bus: 1, Address: addr, PortPath: port,
		VendorID: VendorTI, ProductID: ProductSPL, NumConfigurations: 1, SerialIndex: 3,
	}
}

func testStore(t *testing.T, files map[string]int) *bootfile.Store {
	fs := afero.NewMemMapFs()
	for name, size := range files {
		require.NoError(t, afero.WriteFile(fs, "/boot/"+name, bytes.Repeat([]byte{0xa5}, size), 0644))
	}
	return bootfile.NewStore("/boot", bootfile.WithFs(fs))
}

func frameBytes(t *testing.T, framing netboot.Framing, l ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, l...))
	if framing == netboot.FramingRaw {
		return buf.Bytes()
	}
	h := fastpkt.NewRNDISHeader(len(buf.Bytes()))
	return append(h.Bytes(), buf.Bytes()...)
}

func bootstrapRequest(t *testing.T, framing netboot.Framing) []byte {
	eth := layers.Ethernet{SrcMAC: testDeviceMAC, DstMAC: testBroadcast, EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: net.IPv4zero, DstIP: net.IPv4bcast}
	udp := layers.UDP{SrcPort: 68, DstPort: 67}
	udp.SetNetworkLayerForChecksum(&ip)
	dhcp := layers.DHCPv4{
		Operation:    layers.DHCPOpRequest,
		HardwareType: layers.LinkTypeEthernet,
		HardwareLen:  6,
		Xid:          0x1234,
		ClientHWAddr: testDeviceMAC,
	}
	return frameBytes(t, framing, &eth, &ip, &udp, &dhcp)
}

func arpRequest(t *testing.T, framing netboot.Framing) []byte {
	eth := layers.Ethernet{SrcMAC: testDeviceMAC, DstMAC: testBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   testDeviceMAC,
		SourceProtAddress: net.IP{192, 168, 1, 3},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    net.IP{192, 168, 1, 9},
	}
	return frameBytes(t, framing, &eth, &arp)
}

func tftpRequest(t *testing.T, framing netboot.Framing, payload []byte) []byte {
	eth := layers.Ethernet{SrcMAC: testDeviceMAC, DstMAC: testBroadcast, EthernetType: layers.EthernetTypeIPv4}
	ip := layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: net.IPv4(192, 168, 1, 3), DstIP: net.IPv4(192, 168, 1, 9)}
	udp := layers.UDP{SrcPort: 1024, DstPort: 69}
	udp.SetNetworkLayerForChecksum(&ip)
	return frameBytes(t, framing, &eth, &ip, &udp, gopacket.Payload(payload))
}

func tftpRRQ(t *testing.T, framing netboot.Framing, file string) []byte {
	payload := append([]byte{0, 1}, file...)
	payload = append(payload, 0)
	payload = append(payload, "octet"...)
	return tftpRequest(t, framing, append(payload, 0))
}

func tftpAck(t *testing.T, framing netboot.Framing, block uint16) []byte {
	return tftpRequest(t, framing, []byte{0, 4, byte(block >> 8), byte(block)})
}

// decodeHostFrame strips the framing of a frame written by the host.
func decodeHostFrame(t *testing.T, framing netboot.Framing, frame []byte) gopacket.Packet {
	if framing == netboot.FramingRNDIS {
		require.Greater(t, len(frame), fastpkt.SizeofRNDIS)
		frame = frame[fastpkt.SizeofRNDIS:]
	}
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer())
	return pkt
}

func udpPayload(t *testing.T, framing netboot.Framing, frame []byte) []byte {
	udp, ok := decodeHostFrame(t, framing, frame).Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok)
	return udp.Payload
}

type harness struct {
	t         *testing.T
	transport *usbtest.Transport
	scanner   *Scanner
	events    chan Event
	pending   []Event
	stop      func()
}

func newHarness(t *testing.T) *harness {
	return &harness{
		t:         t,
		transport: usbtest.NewTransport(),
		events:    make(chan Event, 4096),
	}
}

// start runs a scanner with short timers and waits for the ready event.
func (h *harness) start(files netboot.FileReader, opts ...ScannerOpt) {
	opts = append([]ScannerOpt{
		WithPollInterval(time.Hour),
		WithAttachDelay(0),
		WithUnplugTimeout(50 * time.Millisecond),
		WithCloseRetry(DefaultCloseTries, time.Millisecond),
		WithEventHandler(func(ev Event) { h.events <- ev }),
	}, opts...)
	h.scanner = NewScanner(h.transport, files, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.scanner.Run(ctx) }()

	var once sync.Once
	h.stop = func() {
		once.Do(func() {
			cancel()
			assert.NoError(h.t, <-errc)
		})
	}
	h.t.Cleanup(h.stop)
	h.waitEvent(EventReady)
}

// waitEvent returns the first unseen event of kind. Events of other kinds
// stay pending for later calls.
func (h *harness) waitEvent(kind EventKind) Event {
	h.t.Helper()
	for i, ev := range h.pending {
		if ev.Kind == kind {
			h.pending = append(h.pending[:i], h.pending[i+1:]...)
			return ev
		}
	}

	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-h.events:
			if ev.Kind == kind {
				return ev
			}
			h.pending = append(h.pending, ev)
		case <-timer.C:
			require.FailNow(h.t, "no event", kind.String())
			return Event{}
		}
	}
}

// quiet collects the events raised within d.
func (h *harness) quiet(d time.Duration) []Event {
	events := h.pending
	h.pending = nil
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case ev := <-h.events:
			events = append(events, ev)
		case <-timer.C:
			return events
		}
	}
}

func (h *harness) transactions() []TransactionInfo {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	infos, err := h.scanner.Transactions(ctx)
	require.NoError(h.t, err)
	return infos
}

func exchange(t *testing.T, dev *usbtest.Device, frame []byte) []byte {
	t.Helper()
	dev.Inject(frame)
	reply, ok := dev.Next(waitTimeout)
	require.True(t, ok, "no reply")
	return reply
}

func TestScannerServesROM(t *testing.T) {
	h := newHarness(t)
	rom := romDevice(4, "1-1", rndisInterfaces())
	h.transport.Plug(rom, false)
	h.start(testStore(t, map[string]int{DefaultSPLFile: 1300}))

	attach := h.waitEvent(EventAttach)
	assert.Equal(t, "1-1", attach.PortID)
	assert.Equal(t, "1:4", attach.DeviceID)
	assert.Equal(t, DefaultSPLFile, attach.File)
	assert.Equal(t, StageROM, attach.Stage)
	assert.Equal(t, 0, attach.Step)

	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)
	framing := netboot.FramingRNDIS

	reply := exchange(t, dev, bootstrapRequest(t, framing))
	assert.Len(t, reply, 386)
	pkt := decodeHostFrame(t, framing, reply)
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	assert.Equal(t, uint16(8+300), udp.Length)
	dhcp := pkt.Layer(layers.LayerTypeDHCPv4).(*layers.DHCPv4)
	assert.Equal(t, DefaultSPLFile, string(bytes.TrimRight(dhcp.File, "\x00")))
	assert.Equal(t, uint32(0x1234), dhcp.Xid)

	progress := h.waitEvent(EventProgress)
	assert.Equal(t, 1, progress.Step)
	assert.Equal(t, attach.Session, progress.Session)

	controls := dev.Controls()
	require.Len(t, controls, 4)
	assert.Equal(t, usb.RequestTypeClassInterfaceOut, controls[0].RequestType)
	assert.Equal(t, usb.RequestSendEncapsulatedCommand, controls[0].Request)
	assert.Equal(t, usb.RequestTypeClassInterfaceIn, controls[1].RequestType)
	assert.Equal(t, usb.RequestGetEncapsulatedResponse, controls[1].Request)
	assert.Equal(t, uint16(controlBufferSize), controls[1].Length)
	assert.Equal(t, []uint8{0, 1}, dev.Claimed())

	reply = exchange(t, dev, arpRequest(t, framing))
	arp := decodeHostFrame(t, framing, reply).Layer(layers.LayerTypeARP).(*layers.ARP)
	assert.Equal(t, uint16(layers.ARPReply), arp.Operation)

	// 1300 bytes: 512 + 512 + 276
	reply = exchange(t, dev, tftpRRQ(t, framing, DefaultSPLFile))
	payload := udpPayload(t, framing, reply)
	assert.Equal(t, []byte{0, 3, 0, 1}, payload[:4])
	assert.Len(t, payload, 4+512)

	reply = exchange(t, dev, tftpAck(t, framing, 1))
	assert.Equal(t, []byte{0, 3, 0, 2}, udpPayload(t, framing, reply)[:4])
	reply = exchange(t, dev, tftpAck(t, framing, 2))
	payload = udpPayload(t, framing, reply)
	assert.Equal(t, []byte{0, 3, 0, 3}, payload[:4])
	assert.Len(t, payload, 4+276)

	dev.Inject(tftpAck(t, framing, 3))
	require.Eventually(t, dev.Closed, waitTimeout, 5*time.Millisecond)
	_, ok := dev.Next(20 * time.Millisecond)
	assert.False(t, ok)

	// The transaction waits for the SPL stage.
	require.Eventually(t, func() bool {
		infos := h.transactions()
		return len(infos) == 1 && !infos[0].Serving
	}, waitTimeout, 5*time.Millisecond)
	info := h.transactions()[0]
	assert.Equal(t, 5, info.Step)
	assert.Equal(t, attach.Session, info.ID)
	assert.Equal(t, uint64(5), info.Stats.TxFrames)
	assert.Equal(t, uint64(6), info.Stats.RxFrames)
}

func TestScannerFullBoot(t *testing.T) {
	h := newHarness(t)
	h.start(testStore(t, map[string]int{DefaultSPLFile: 100, DefaultImageFile: 100}), WithUnplugTimeout(100*time.Millisecond))
	framing := netboot.FramingRaw

	rom := romDevice(4, "1-1.2", rawInterfaces())
	h.transport.Plug(rom, true)
	attach := h.waitEvent(EventAttach)
	romDev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)
	exchange(t, romDev, bootstrapRequest(t, framing))
	assert.Equal(t, 1, h.waitEvent(EventProgress).Step)

	// ROM resets and comes back as SPL on the same port.
	h.transport.Unplug(rom, true)
	spl := splDevice(5, "1-1.2", rawInterfaces())
	h.transport.Plug(spl, true)
	splDev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "1:5", splDev.Info().DeviceID())

	reply := exchange(t, splDev, bootstrapRequest(t, framing))
	dhcp := decodeHostFrame(t, framing, reply).Layer(layers.LayerTypeDHCPv4).(*layers.DHCPv4)
	assert.Equal(t, DefaultImageFile, string(bytes.TrimRight(dhcp.File, "\x00")))

	progress := h.waitEvent(EventProgress)
	assert.Equal(t, 2, progress.Step)
	assert.Equal(t, attach.Session, progress.Session)
	assert.Equal(t, "1:5", progress.DeviceID)

	// Past the unplug timeout the transaction is still there.
	for _, ev := range h.quiet(200 * time.Millisecond) {
		assert.NotEqual(t, EventDetach, ev.Kind)
		assert.NotEqual(t, EventAttach, ev.Kind)
	}
	require.Len(t, h.transactions(), 1)

	// SPL hands over to the mass storage gadget.
	h.transport.Unplug(spl, true)
	h.transport.Plug(massStorageDevice(6, "1-1.2"), true)

	progress = h.waitEvent(EventProgress)
	assert.Equal(t, DefaultTerminalStep, progress.Step)
	assert.Equal(t, 100, progress.Progress)
	detach := h.waitEvent(EventDetach)
	assert.Equal(t, ReasonComplete, detach.Reason)
	assert.Equal(t, attach.Session, detach.Session)
	assert.Empty(t, h.transactions())

	_, err = h.transport.WaitOpen(50 * time.Millisecond)
	assert.Error(t, err)
}

func TestScannerFileNotFound(t *testing.T) {
	h := newHarness(t)
	h.transport.Plug(romDevice(4, "1-1", rawInterfaces()), false)
	h.start(testStore(t, nil))
	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	reply := exchange(t, dev, tftpRRQ(t, netboot.FramingRaw, DefaultSPLFile))
	assert.Equal(t, append([]byte{0, 5, 0, 1}, "File not found\x00"...), udpPayload(t, netboot.FramingRaw, reply))

	detach := h.waitEvent(EventDetach)
	assert.Equal(t, ReasonFileNotFound, detach.Reason)
	assert.True(t, dev.Closed())
	assert.Equal(t, 0, dev.Written())
	assert.Empty(t, h.transactions())
}

func TestScannerTerminalStep(t *testing.T) {
	h := newHarness(t)
	h.transport.Plug(romDevice(4, "1-1", rawInterfaces()), false)
	h.start(testStore(t, map[string]int{DefaultSPLFile: 600}), WithTerminalStep(2))
	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	exchange(t, dev, bootstrapRequest(t, netboot.FramingRaw))
	assert.Equal(t, 50, h.waitEvent(EventProgress).Progress)
	exchange(t, dev, arpRequest(t, netboot.FramingRaw))

	detach := h.waitEvent(EventDetach)
	assert.Equal(t, ReasonComplete, detach.Reason)
	assert.Equal(t, 100, detach.Progress)
	require.Eventually(t, dev.Closed, waitTimeout, 5*time.Millisecond)
}

func TestScannerWriteError(t *testing.T) {
	h := newHarness(t)
	h.transport.WriteErr = errors.New("pipe")
	h.transport.Plug(romDevice(4, "1-1", rawInterfaces()), false)
	h.start(testStore(t, nil))
	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	dev.Inject(bootstrapRequest(t, netboot.FramingRaw))
	detach := h.waitEvent(EventDetach)
	assert.Equal(t, ReasonTransferError, detach.Reason)
	assert.Equal(t, 0, detach.Step)
	assert.True(t, dev.Closed())
}

func TestScannerLinkError(t *testing.T) {
	h := newHarness(t)
	h.transport.ControlErr = errors.New("stall")
	h.transport.Plug(romDevice(4, "1-1", rndisInterfaces()), false)
	h.start(testStore(t, nil))

	detach := h.waitEvent(EventDetach)
	assert.Equal(t, ReasonLinkError, detach.Reason)
	assert.True(t, h.transport.Opened("1:4").Closed())
}

func TestScannerRetriesAfterLinkError(t *testing.T) {
	h := newHarness(t)
	h.start(testStore(t, nil), WithPollInterval(20*time.Millisecond))

	// Interface directories are not in sysfs yet when the add event arrives.
	h.transport.Plug(romDevice(4, "1-1", nil), true)
	assert.Equal(t, ReasonLinkError, h.waitEvent(EventDetach).Reason)

	h.transport.Plug(romDevice(4, "1-1", rawInterfaces()), false)
	var dev *usbtest.Device
	for dev == nil || len(dev.Info().Interfaces) == 0 {
		var err error
		dev, err = h.transport.WaitOpen(waitTimeout)
		require.NoError(t, err)
	}

	reply := exchange(t, dev, bootstrapRequest(t, netboot.FramingRaw))
	dhcp := decodeHostFrame(t, netboot.FramingRaw, reply).Layer(layers.LayerTypeDHCPv4).(*layers.DHCPv4)
	assert.Equal(t, DefaultSPLFile, string(bytes.TrimRight(dhcp.File, "\x00")))
}

func TestScannerCloseRetry(t *testing.T) {
	testCases := []struct {
		pending int
		closed  bool
	}{
		{pending: 0, closed: true},
		{pending: DefaultCloseTries, closed: true},
		{pending: DefaultCloseTries + 1, closed: false},
	}

	for _, testCase := range testCases {
		h := newHarness(t)
		h.transport.PendingCloses = testCase.pending
		h.transport.WriteErr = errors.New("pipe")
		h.transport.Plug(romDevice(4, "1-1", rawInterfaces()), false)
		h.start(testStore(t, nil))
		dev, err := h.transport.WaitOpen(waitTimeout)
		require.NoError(t, err)

		dev.Inject(bootstrapRequest(t, netboot.FramingRaw))
		h.waitEvent(EventDetach)
		assert.Equal(t, testCase.closed, dev.Closed(), "pending closes %d", testCase.pending)
		h.stop()
	}
}

func TestScannerUnplug(t *testing.T) {
	h := newHarness(t)
	rom := romDevice(4, "1-1", rawInterfaces())
	h.transport.Plug(rom, false)
	h.start(testStore(t, nil))
	attach := h.waitEvent(EventAttach)
	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	h.transport.Unplug(rom, true)
	detach := h.waitEvent(EventDetach)
	assert.Equal(t, ReasonUnplug, detach.Reason)
	assert.Equal(t, attach.Session, detach.Session)
	assert.GreaterOrEqual(t, detach.Time.Sub(attach.Time), 50*time.Millisecond)
	require.Eventually(t, dev.Closed, waitTimeout, 5*time.Millisecond)
	assert.Empty(t, h.transactions())
}

func TestScannerPollDetectsVanished(t *testing.T) {
	h := newHarness(t)
	rom := romDevice(4, "1-1", rawInterfaces())
	h.start(testStore(t, nil), WithHotplug(false), WithPollInterval(20*time.Millisecond))

	h.transport.Plug(rom, false)
	h.waitEvent(EventAttach)
	_, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	h.transport.Unplug(rom, false)
	assert.Equal(t, ReasonUnplug, h.waitEvent(EventDetach).Reason)
}

func TestScannerPollKeepsUnreadable(t *testing.T) {
	h := newHarness(t)
	rom := romDevice(4, "1-1", rawInterfaces())
	h.start(testStore(t, nil), WithHotplug(false), WithPollInterval(20*time.Millisecond))

	h.transport.Plug(rom, false)
	h.waitEvent(EventAttach)
	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	// sysfs attributes of the port could not be read for a few sweeps
	unreadable := usb.DeviceInfo{Bus: 1, Address: 4, PortPath: "1-1", Partial: true}
	h.transport.Plug(unreadable, false)
	for _, ev := range h.quiet(150 * time.Millisecond) {
		assert.NotEqual(t, EventDetach, ev.Kind)
	}
	assert.False(t, dev.Closed())

	h.transport.Plug(rom, false)
	reply := exchange(t, dev, bootstrapRequest(t, netboot.FramingRaw))
	assert.NotEmpty(t, reply)

	h.transport.Unplug(rom, false)
	assert.Equal(t, ReasonUnplug, h.waitEvent(EventDetach).Reason)
}

func TestScannerSkipsDevices(t *testing.T) {
	h := newHarness(t)
	configured := romDevice(4, "1-1", rawInterfaces())
	configured.SerialIndex = 3
	foreign := romDevice(5, "1-2", rawInterfaces())
	foreign.VendorID = 0x1d6b
	h.transport.Plug(configured, false)
	h.transport.Plug(foreign, false)
	h.transport.Plug(massStorageDevice(6, "1-3"), false)
	h.start(testStore(t, nil))

	_, err := h.transport.WaitOpen(100 * time.Millisecond)
	assert.Error(t, err)
	assert.Empty(t, h.transactions())
}

func TestScannerDuplicateAttach(t *testing.T) {
	h := newHarness(t)
	rom := romDevice(4, "1-1", rawInterfaces())
	h.transport.Plug(rom, false)
	h.start(testStore(t, nil))
	h.waitEvent(EventAttach)
	_, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	h.transport.Plug(rom, true)
	_, err = h.transport.WaitOpen(100 * time.Millisecond)
	assert.Error(t, err)
	for _, ev := range h.quiet(50 * time.Millisecond) {
		assert.NotEqual(t, EventAttach, ev.Kind)
	}
}

func TestScannerAttachDelay(t *testing.T) {
	h := newHarness(t)
	h.transport.Plug(splDevice(5, "1-1", rawInterfaces()), false)
	h.start(testStore(t, nil), WithAttachDelay(300*time.Millisecond))

	_, err := h.transport.WaitOpen(50 * time.Millisecond)
	assert.Error(t, err)
	dev, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)
	assert.Equal(t, "1:5", dev.Info().DeviceID())
	assert.Equal(t, StageSPL, h.waitEvent(EventAttach).Stage)
}

func TestScannerStopClosesDevices(t *testing.T) {
	h := newHarness(t)
	h.transport.Plug(romDevice(4, "1-1", rndisInterfaces()), false)
	h.transport.Plug(romDevice(5, "1-2", rawInterfaces()), false)
	h.start(testStore(t, nil))
	first, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)
	second, err := h.transport.WaitOpen(waitTimeout)
	require.NoError(t, err)

	h.stop()
	assert.True(t, first.Closed())
	assert.True(t, second.Closed())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.scanner.Transactions(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
