package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/zxhio/usbboot/internal/config"
	"github.com/zxhio/usbboot/internal/daemon"
	"github.com/zxhio/usbboot/pkg/builder"
	"github.com/zxhio/usbboot/pkg/utils"
)

const logoAscii = `
                 |  |              |
 |  | (_-<  _ \  _ \  _ \  _ \   _|
\_,_| ___/ ___/ ___/ ___/ ___/ \__|`

var (
	cfgFile string
	version bool
)

func main() {
	pflag.StringVarP(&cfgFile, "config", "c", "", "Config file (default search /etc/usbboot/usbboot.yaml, ./usbboot.yaml)")
	pflag.BoolVarP(&version, "version", "V", false, "Print version")
	pflag.BoolP("verbose", "v", false, "Verbose output")
	pflag.StringP("dir", "d", "", "Boot file directory")
	pflag.String("addr", "", "Status API listen address, empty disables the api")
	pflag.Bool("pprof", false, "Serve pprof on the status API")
	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if version {
		fmt.Println(color.HiBlueString(logoAscii))
		fmt.Println(builder.BuildInfo())
		os.Exit(0)
	}

	cfg, err := config.Load(cfgFile,
		config.WithFlag(config.KeyLogVerbose, pflag.Lookup("verbose")),
		config.WithFlag(config.KeyBootDir, pflag.Lookup("dir")),
		config.WithFlag(config.KeyAPIAddr, pflag.Lookup("addr")),
		config.WithFlag(config.KeyAPIPprof, pflag.Lookup("pprof")),
	)
	utils.CheckErrorAndExit(err, "Load config")

	daemon.SetupLogging(cfg.Log)

	logrus.WithFields(logrus.Fields{"pid": os.Getpid(), "config": cfg.File}).Info("///usbbootd start")
	defer logrus.WithField("pid", os.Getpid()).Info("///usbbootd quit")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logrus.WithField("sig", sig).Info("Recv signal")
		cancel()
	}()

	err = daemon.Run(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Error("Fail to run daemon")
	}
}
