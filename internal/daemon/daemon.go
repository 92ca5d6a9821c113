// Package daemon wires the scanner, the boot file store and the status API
// together for usbbootd and `usbboot serve`.
package daemon

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/zxhio/usbboot/internal/api"
	"github.com/zxhio/usbboot/internal/boot"
	"github.com/zxhio/usbboot/internal/bootfile"
	"github.com/zxhio/usbboot/internal/config"
	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/internal/usb"
	"github.com/zxhio/usbboot/internal/usb/usbfs"
	"github.com/zxhio/usbboot/pkg/humanize"
	"github.com/zxhio/usbboot/pkg/utils"
)

const shutdownTimeout = 3 * time.Second

type runOpts struct {
	transport usb.Transport
	listener  net.Listener
	fs        afero.Fs
	handlers  []boot.EventHandler
}

type RunOpt func(*runOpts)

// WithTransport replaces the usbfs transport.
func WithTransport(t usb.Transport) RunOpt {
	return func(o *runOpts) { o.transport = t }
}

// WithListener serves the API on lis instead of listening on the configured address.
func WithListener(lis net.Listener) RunOpt {
	return func(o *runOpts) { o.listener = lis }
}

func WithFs(fs afero.Fs) RunOpt {
	return func(o *runOpts) { o.fs = fs }
}

func WithEventHandler(h boot.EventHandler) RunOpt {
	return func(o *runOpts) { o.handlers = append(o.handlers, h) }
}

// SetupLogging sends logs to a rotated file unless verbose, in which case
// debug logs go to stderr.
func SetupLogging(cfg config.LogConfig) {
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
		return
	}

	gin.SetMode(gin.ReleaseMode)
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.File != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     60,
			Compress:   true,
		})
	}
}

// Run serves devices until ctx is done.
func Run(ctx context.Context, cfg *config.Config, opts ...RunOpt) error {
	var o runOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = usbfs.New()
	}

	var storeOpts []bootfile.StoreOpt
	if o.fs != nil {
		storeOpts = append(storeOpts, bootfile.WithFs(o.fs))
	}
	store := bootfile.NewStore(cfg.Boot.Dir, storeOpts...)
	checkBootFiles(store, cfg.Boot)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scannerOpts := []boot.ScannerOpt{
		boot.WithFiles(cfg.Boot.SPLFile, cfg.Boot.ImageFile),
		boot.WithTerminalStep(cfg.Boot.TerminalStep),
		boot.WithPollInterval(cfg.Scan.PollInterval),
		boot.WithAttachDelay(cfg.Scan.AttachDelay),
		boot.WithUnplugTimeout(cfg.Scan.UnplugTimeout),
		boot.WithHotplug(cfg.Scan.Hotplug),
		boot.WithMetrics(boot.NewMetrics(reg)),
		boot.WithSessionOpts(
			netboot.WithServerIP(cfg.Netboot.ServerIP),
			netboot.WithClientIP(cfg.Netboot.ClientIP),
			netboot.WithNetmask(cfg.Netboot.Netmask),
			netboot.WithServerName(cfg.Netboot.ServerName),
		),
	}
	for _, h := range o.handlers {
		scannerOpts = append(scannerOpts, boot.WithEventHandler(h))
	}
	scanner := boot.NewScanner(o.transport, store, scannerOpts...)

	var closers utils.NamedClosers
	defer func() {
		closers.Close(&utils.CloseOpt{
			ReverseOrder: true,
			Output:       logrus.Info,
			ErrorOutput:  logrus.Error,
		})
	}()

	lis := o.listener
	if lis == nil && cfg.API.Addr != "" {
		var err error
		lis, err = net.Listen("tcp", cfg.API.Addr)
		if err != nil {
			return errors.Wrap(err, "net.Listen")
		}
	}
	if lis != nil {
		srv := newAPIServer(scanner, o.transport, reg, cfg.API)
		closers.Add("api.Server", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		})
		logrus.WithField("addr", lis.Addr()).Info("Listen on")

		go func() {
			err := srv.Serve(lis)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("Fail to serve api")
			}
		}()
	}

	return scanner.Run(ctx)
}

func newAPIServer(scanner *boot.Scanner, transport usb.Transport, reg *prometheus.Registry, cfg config.APIConfig) *http.Server {
	g := gin.New()
	g.Use(gin.Recovery())
	api.SetBootRouter(g, scanner, transport, api.WithGatherer(reg), api.WithPprof(cfg.Pprof))
	return &http.Server{Handler: g, ReadHeaderTimeout: shutdownTimeout}
}

// checkBootFiles only warns: files may be dropped into the directory later.
func checkBootFiles(store *bootfile.Store, cfg config.BootConfig) {
	for _, name := range []string{cfg.SPLFile, cfg.ImageFile} {
		size, err := store.Stat(name)
		if err != nil {
			logrus.WithError(err).WithField("dir", cfg.Dir).Warn("Boot file unavailable")
			continue
		}
		logrus.WithFields(logrus.Fields{"file": name, "size": humanize.IBytes(size)}).Info("Boot file")
	}
}
