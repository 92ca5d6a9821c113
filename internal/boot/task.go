package boot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/internal/usb"
	"github.com/zxhio/usbboot/pkg/fastpkt"
	"github.com/zxhio/usbboot/pkg/humanize"
	"golang.org/x/time/rate"
)

const (
	inboundBufferSize = 2048
	controlBufferSize = 1025
)

type taskMsgKind int

const (
	// msgSent confirms one outbound transfer.
	msgSent taskMsgKind = iota
	// msgReceived reports an inbound frame that was not answered.
	msgReceived
	// msgExit reports the task has stopped and closed its device.
	msgExit
)

type taskMsg struct {
	kind     taskMsgKind
	portID   string
	deviceID string

	frameKind netboot.Kind
	rxBytes   int
	txBytes   int
	fileBytes int // boot file bytes carried by a data block
	file      string

	// msgExit
	reason Reason
	err    error
}

// task serves one open device. It owns the device handle and the session and
// reports to the scanner only through msgs.
type task struct {
	info    usb.DeviceInfo
	dev     usb.Device
	session *netboot.Session
	msgs    chan<- taskMsg
	done    <-chan struct{} // closed when the scanner stops

	closeTries   int
	closeBackoff time.Duration

	metrics *Metrics
	limiter *rate.Limiter
	log     *logrus.Entry
}

type endpoints struct {
	in, out   uint8
	notify    uint8
	hasNotify bool
}

func (t *task) run(ctx context.Context) {
	reason, err := t.serve(ctx)
	t.close()
	t.send(taskMsg{kind: msgExit, reason: reason, err: err})
}

func (t *task) send(msg taskMsg) {
	msg.portID = t.info.PortID()
	msg.deviceID = t.info.DeviceID()
	select {
	case t.msgs <- msg:
	case <-t.done:
	}
}

// serve runs the link until the transfer completes, fails or ctx is done. A
// cancelled task reports ReasonNone.
func (t *task) serve(ctx context.Context) (Reason, error) {
	eps, err := t.setup(ctx)
	if err != nil {
		t.metrics.TransferErrors.WithLabelValues("control").Inc()
		return ReasonLinkError, err
	}

	if eps.hasNotify {
		drainCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go t.drain(drainCtx, eps.notify)
	}

	buf := make([]byte, inboundBufferSize)
	for {
		n, err := t.dev.Read(ctx, eps.in, buf)
		if err != nil {
			if ctx.Err() != nil {
				return ReasonNone, nil
			}
			// The device may reset as soon as it has the last block.
			if t.session.State() == netboot.StateComplete {
				return ReasonComplete, nil
			}
			t.metrics.TransferErrors.WithLabelValues("read").Inc()
			return ReasonTransferError, errors.Wrap(err, "usb.Read")
		}
		frame := buf[:n]

		reply := t.session.Handle(frame)
		t.metrics.FramesReceived.WithLabelValues(reply.Kind.String()).Inc()

		switch reply.Action {
		case netboot.ActionNone:
			if !reply.Kind.Actionable() && t.limiter.Allow() {
				t.log.WithField("kind", reply.Kind).Debug(fastpkt.Format(frame, fastpkt.WithFormatLinkPrefix(t.session.Framing().Prefix())))
			}
			t.send(taskMsg{kind: msgReceived, frameKind: reply.Kind, rxBytes: n})

		case netboot.ActionSend, netboot.ActionAbort:
			if err := t.write(ctx, eps.out, reply, n); err != nil {
				if ctx.Err() != nil {
					return ReasonNone, nil
				}
				return ReasonTransferError, err
			}
			if reply.Action == netboot.ActionAbort {
				return ReasonFileNotFound, t.session.Transfer().Err
			}

		case netboot.ActionFinish:
			t.send(taskMsg{kind: msgReceived, frameKind: reply.Kind, rxBytes: n})
			tr := t.session.Transfer()
			t.log.WithFields(logrus.Fields{"file": tr.File, "size": humanize.IBytes(tr.Size())}).Info("Transfer complete")
			return ReasonComplete, nil
		}
	}
}

func (t *task) write(ctx context.Context, ep uint8, reply netboot.Reply, rxBytes int) error {
	_, err := t.dev.Write(ctx, ep, reply.Frame)
	if err != nil {
		t.metrics.TransferErrors.WithLabelValues("write").Inc()
		return errors.Wrap(err, "usb.Write")
	}
	t.metrics.FramesSent.WithLabelValues(reply.Kind.String()).Inc()

	msg := taskMsg{kind: msgSent, frameKind: reply.Kind, rxBytes: rxBytes, txBytes: len(reply.Frame)}
	if tr := t.session.Transfer(); tr != nil && (reply.Kind == netboot.KindTFTP || reply.Kind == netboot.KindTFTPData) {
		msg.file = tr.File
		msg.fileBytes = tr.LastChunk()
		t.metrics.BytesServed.WithLabelValues(tr.File).Add(float64(msg.fileBytes))
	}
	t.send(msg)
	return nil
}

// setup detaches kernel drivers, brings up the RNDIS function when the device
// uses RNDIS framing, and claims the data interface.
func (t *task) setup(ctx context.Context) (endpoints, error) {
	var eps endpoints

	for _, num := range []uint8{controlInterface, dataInterface} {
		if _, ok := t.info.Interface(num); !ok {
			continue
		}
		if err := t.dev.DetachKernelDriver(num); err != nil {
			return eps, errors.Wrapf(err, "detach kernel driver from interface %d", num)
		}
	}

	if t.session.Framing() == netboot.FramingRNDIS {
		if err := t.dev.ClaimInterface(controlInterface); err != nil {
			return eps, errors.Wrap(err, "claim control interface")
		}
		if err := t.initRNDIS(ctx); err != nil {
			return eps, err
		}
		if iface, ok := t.info.Interface(controlInterface); ok {
			if ep, ok := iface.Endpoint(usb.TransferInterrupt, true); ok {
				eps.notify, eps.hasNotify = ep.Address, true
			}
		}
	}

	iface, ok := t.info.Interface(dataInterface)
	if !ok {
		return eps, errors.Errorf("no data interface %d", dataInterface)
	}
	in, ok := iface.Endpoint(usb.TransferBulk, true)
	if !ok {
		return eps, errors.New("no bulk IN endpoint")
	}
	out, ok := iface.Endpoint(usb.TransferBulk, false)
	if !ok {
		return eps, errors.New("no bulk OUT endpoint")
	}
	if err := t.dev.ClaimInterface(dataInterface); err != nil {
		return eps, errors.Wrap(err, "claim data interface")
	}
	eps.in, eps.out = in.Address, out.Address
	return eps, nil
}

// initRNDIS sends INITIALIZE and SET packet filter, reading the encapsulated
// response after each.
func (t *task) initRNDIS(ctx context.Context) error {
	for _, msg := range [][]byte{netboot.RNDISInit(), netboot.RNDISSet()} {
		send := usb.SetupPacket{
			RequestType: usb.RequestTypeClassInterfaceOut,
			Request:     usb.RequestSendEncapsulatedCommand,
			Index:       uint16(controlInterface),
		}
		if _, err := t.dev.Control(ctx, send, msg); err != nil {
			return errors.Wrap(err, "rndis send encapsulated command")
		}

		recv := usb.SetupPacket{
			RequestType: usb.RequestTypeClassInterfaceIn,
			Request:     usb.RequestGetEncapsulatedResponse,
			Index:       uint16(controlInterface),
			Length:      controlBufferSize,
		}
		if _, err := t.dev.Control(ctx, recv, make([]byte, controlBufferSize)); err != nil {
			return errors.Wrap(err, "rndis get encapsulated response")
		}
	}
	return nil
}

// drain keeps the RNDIS notification endpoint polled. Its content is unused.
func (t *task) drain(ctx context.Context, ep uint8) {
	buf := make([]byte, 256)
	for {
		_, err := t.dev.Read(ctx, ep, buf)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.log.WithError(err).Debug("Stop notification polling")
			return
		}
	}
}

// close retries while a transfer is pending. Giving up leaks the handle.
func (t *task) close() {
	for try := 0; ; try++ {
		err := t.dev.Close()
		if err == nil {
			return
		}
		if errors.Is(err, usb.ErrPending) && try < t.closeTries {
			t.log.Debug("Retry device close")
			time.Sleep(t.closeBackoff)
			continue
		}
		t.metrics.TransferErrors.WithLabelValues("close").Inc()
		t.log.WithError(err).Warn("Abandon device close")
		return
	}
}
