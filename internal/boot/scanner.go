package boot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/internal/usb"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval  = 2 * time.Second
	DefaultAttachDelay   = 500 * time.Millisecond
	DefaultUnplugTimeout = 5 * time.Second
	DefaultCloseTries    = 2
	DefaultCloseBackoff  = 150 * time.Millisecond
)

type scannerOpts struct {
	terminalStep  int
	pollInterval  time.Duration
	attachDelay   time.Duration
	unplugTimeout time.Duration
	closeTries    int
	closeBackoff  time.Duration
	hotplug       bool
	splFile       string
	imageFile     string
	handlers      []EventHandler
	metrics       *Metrics
	sessionOpts   []netboot.SessionOpt
}

type ScannerOpt func(*scannerOpts)

func WithTerminalStep(n int) ScannerOpt {
	return func(o *scannerOpts) { o.terminalStep = n }
}

func WithPollInterval(d time.Duration) ScannerOpt {
	return func(o *scannerOpts) { o.pollInterval = d }
}

// WithAttachDelay sets how long an SPL stage device settles before it is served.
func WithAttachDelay(d time.Duration) ScannerOpt {
	return func(o *scannerOpts) { o.attachDelay = d }
}

// WithUnplugTimeout sets the grace period between a detach and the removal of
// a transaction whose device did not come back.
func WithUnplugTimeout(d time.Duration) ScannerOpt {
	return func(o *scannerOpts) { o.unplugTimeout = d }
}

func WithCloseRetry(tries int, backoff time.Duration) ScannerOpt {
	return func(o *scannerOpts) {
		o.closeTries = tries
		o.closeBackoff = backoff
	}
}

func WithHotplug(enable bool) ScannerOpt {
	return func(o *scannerOpts) { o.hotplug = enable }
}

// WithFiles sets the files named in bootstrap replies of each stage.
func WithFiles(spl, image string) ScannerOpt {
	return func(o *scannerOpts) {
		o.splFile = spl
		o.imageFile = image
	}
}

func WithEventHandler(h EventHandler) ScannerOpt {
	return func(o *scannerOpts) { o.handlers = append(o.handlers, h) }
}

func WithMetrics(m *Metrics) ScannerOpt {
	return func(o *scannerOpts) { o.metrics = m }
}

func WithSessionOpts(opts ...netboot.SessionOpt) ScannerOpt {
	return func(o *scannerOpts) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// Scanner discovers boot capable devices and serves each one from its own
// task. All registry state lives on the goroutine running Run.
type Scanner struct {
	*scannerOpts
	transport usb.Transport
	files     netboot.FileReader
	queries   chan chan []TransactionInfo
	running   atomic.Bool
}

func NewScanner(transport usb.Transport, files netboot.FileReader, opts ...ScannerOpt) *Scanner {
	o := scannerOpts{
		terminalStep:  DefaultTerminalStep,
		pollInterval:  DefaultPollInterval,
		attachDelay:   DefaultAttachDelay,
		unplugTimeout: DefaultUnplugTimeout,
		closeTries:    DefaultCloseTries,
		closeBackoff:  DefaultCloseBackoff,
		hotplug:       true,
		splFile:       DefaultSPLFile,
		imageFile:     DefaultImageFile,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return &Scanner{
		scannerOpts: &o,
		transport:   transport,
		files:       files,
		queries:     make(chan chan []TransactionInfo),
	}
}

// Run scans until ctx is done. Every device task has closed its device when
// Run returns.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scanner already running")
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	l := &loop{
		Scanner:  s,
		ctx:      ctx,
		reg:      newRegistry(),
		msgs:     make(chan taskMsg, 64),
		deferred: make(chan func(), 16),
		done:     make(chan struct{}),
	}
	defer func() {
		cancel()
		l.reg.clear()
		l.metrics.ActiveTransactions.Set(0)
		close(l.done)
		l.wg.Wait()
	}()

	var hotplug <-chan usb.HotplugEvent
	if s.hotplug {
		events, err := s.transport.Hotplug(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Hotplug unavailable, polling only")
		} else {
			hotplug = events
		}
	}

	l.sweep()
	l.emit(newEvent(EventReady, nil, ReasonNone))
	logrus.WithFields(logrus.Fields{
		"poll":    s.pollInterval,
		"hotplug": hotplug != nil,
	}).Info("Scanner ready")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Scanner stopped")
			return nil

		case ev, ok := <-hotplug:
			if !ok {
				logrus.Warn("Hotplug closed, polling only")
				hotplug = nil
				continue
			}
			logrus.WithFields(logrus.Fields{"action": ev.Action, "device": ev.Device.DeviceID(), "port": ev.Device.PortID()}).Debug("Hotplug event")
			switch ev.Action {
			case usb.HotplugAttach:
				l.attach(ev.Device)
			case usb.HotplugDetach:
				l.detach(ev.Device)
			}

		case <-ticker.C:
			l.sweep()

		case msg := <-l.msgs:
			l.handleMsg(msg)

		case fn := <-l.deferred:
			fn()

		case reply := <-s.queries:
			reply <- l.reg.snapshot()
		}
	}
}

// Transactions returns the tracked transactions ordered by port id.
func (s *Scanner) Transactions(ctx context.Context) ([]TransactionInfo, error) {
	reply := make(chan []TransactionInfo, 1)
	select {
	case s.queries <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case infos := <-reply:
		return infos, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loop is the state of one Run.
type loop struct {
	*Scanner
	ctx      context.Context
	reg      *registry
	msgs     chan taskMsg
	deferred chan func()
	done     chan struct{}
	wg       sync.WaitGroup
}

func (l *loop) emit(ev Event) {
	for _, h := range l.handlers {
		h(ev)
	}
}

// after runs fn on the loop goroutine once d has elapsed.
func (l *loop) after(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		select {
		case l.deferred <- fn:
		case <-l.done:
		}
	})
}

func (l *loop) sweep() {
	devices, err := l.transport.Devices()
	if err != nil {
		logrus.WithError(err).Warn("Fail to enumerate usb devices")
		return
	}

	present := make(map[string]struct{}, len(devices))
	busyPorts := make(map[string]struct{})
	for _, info := range devices {
		if info.Partial {
			busyPorts[info.PortID()] = struct{}{}
			continue
		}
		present[info.DeviceID()] = struct{}{}
		l.attach(info)
	}

	// A device that could not be read is still there.
	var vanished []usb.DeviceInfo
	for id, info := range l.reg.open {
		_, ok := present[id]
		_, busy := busyPorts[info.PortID()]
		if !ok && !busy {
			vanished = append(vanished, info)
		}
	}
	for _, info := range vanished {
		l.detach(info)
	}
}

func (l *loop) attach(info usb.DeviceInfo) {
	if l.reg.isOpen(info.DeviceID()) {
		return
	}
	log := logrus.WithFields(logrus.Fields{"port": info.PortID(), "device": info.DeviceID()})

	if MassStorage(info) {
		t, ok := l.reg.get(info.PortID())
		if !ok {
			return
		}
		l.reg.markOpen(info)
		log.WithField("session", t.ID).Info("Device is back as mass storage")
		t.finish()
		l.emit(newEvent(EventProgress, t, ReasonNone))
		l.remove(info.PortID(), ReasonComplete)
		return
	}

	stage := bootStage(info)
	if stage == StageNone {
		return
	}
	l.reg.markOpen(info)
	log.WithFields(logrus.Fields{"stage": stage, "framing": Framing(info)}).Info("Found boot device")

	if stage == StageSPL && l.attachDelay > 0 {
		l.after(l.attachDelay, func() {
			if l.reg.isOpen(info.DeviceID()) {
				l.startTask(info, stage)
			}
		})
		return
	}
	l.startTask(info, stage)
}

func (l *loop) detach(info usb.DeviceInfo) {
	stored, ok := l.reg.markClosed(info.DeviceID())
	if !ok {
		return
	}
	portID := stored.PortID()
	log := logrus.WithFields(logrus.Fields{"port": portID, "device": stored.DeviceID()})
	log.Info("Device detached")

	t, ok := l.reg.get(portID)
	if !ok {
		return
	}
	if t.DeviceID == stored.DeviceID() {
		t.stopTask()
	}

	l.after(l.unplugTimeout, func() {
		t, ok := l.reg.get(portID)
		if !ok || t.Complete() || l.reg.portOpen(portID) {
			return
		}
		log.WithField("session", t.ID).Info("Device did not come back")
		l.remove(portID, ReasonUnplug)
	})
}

func (l *loop) startTask(info usb.DeviceInfo, stage Stage) {
	log := logrus.WithFields(logrus.Fields{"port": info.PortID(), "device": info.DeviceID()})

	dev, err := l.transport.Open(info)
	if err != nil {
		l.metrics.TransferErrors.WithLabelValues("open").Inc()
		log.WithError(err).Warn("Fail to open device")
		l.reg.markClosed(info.DeviceID())
		return
	}

	t, created := l.reg.getOrCreate(info.PortID(), l.terminalStep)
	t.stopTask()
	t.DeviceID = info.DeviceID()
	t.Stage = stage
	t.File = l.splFile
	if stage == StageSPL {
		t.File = l.imageFile
	}
	t.Updated = time.Now()
	if created {
		l.metrics.ActiveTransactions.Set(float64(len(l.reg.transactions)))
		l.emit(newEvent(EventAttach, t, ReasonNone))
	}

	ctx, cancel := context.WithCancel(l.ctx)
	t.cancel = cancel

	framing := Framing(info)
	tk := &task{
		info:         info,
		dev:          dev,
		session:      netboot.NewSession(framing, t.File, l.files, l.sessionOpts...),
		msgs:         l.msgs,
		done:         l.done,
		closeTries:   l.closeTries,
		closeBackoff: l.closeBackoff,
		metrics:      l.metrics,
		limiter:      rate.NewLimiter(1, 5),
		log:          log.WithField("session", t.ID),
	}
	tk.log.WithFields(logrus.Fields{"stage": stage, "file": t.File, "framing": framing}).Info("Serve device")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		tk.run(ctx)
	}()
}

func (l *loop) handleMsg(msg taskMsg) {
	t, ok := l.reg.get(msg.portID)
	if !ok || t.DeviceID != msg.deviceID {
		// Left over from a task that was replaced or removed.
		return
	}

	switch msg.kind {
	case msgReceived:
		t.Stats.AddRx(msg.rxBytes, !msg.frameKind.Actionable())

	case msgSent:
		t.Stats.AddRx(msg.rxBytes, false)
		t.Stats.AddTx(msg.txBytes)
		t.advance()
		l.emit(newEvent(EventProgress, t, ReasonNone))
		if t.Complete() {
			l.remove(t.PortID, ReasonComplete)
		}

	case msgExit:
		t.stopTask()
		log := logrus.WithFields(logrus.Fields{"port": t.PortID, "device": t.DeviceID, "session": t.ID, "reason": msg.reason})
		if msg.err != nil {
			log = log.WithError(msg.err)
		}
		switch msg.reason {
		case ReasonNone, ReasonComplete:
			log.Debug("Device released")
		default:
			log.Warn("Device failed")
			if msg.reason == ReasonLinkError {
				// Interfaces may show up in sysfs after the add uevent, the
				// next sweep retries the device.
				l.reg.markClosed(msg.deviceID)
			}
			l.remove(t.PortID, msg.reason)
		}
	}
}

func (l *loop) remove(portID string, reason Reason) {
	t, ok := l.reg.remove(portID)
	if !ok {
		return
	}
	l.metrics.ActiveTransactions.Set(float64(len(l.reg.transactions)))
	l.metrics.TransactionsCompleted.WithLabelValues(string(reason)).Inc()
	logrus.WithFields(logrus.Fields{
		"port": portID, "session": t.ID, "step": t.Step, "progress": t.Progress(), "reason": reason,
	}).Info("Remove transaction")
	l.emit(newEvent(EventDetach, t, reason))
}
