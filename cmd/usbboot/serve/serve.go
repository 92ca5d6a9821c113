package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zxhio/usbboot/cmd/usbboot/util"
	"github.com/zxhio/usbboot/internal/config"
	"github.com/zxhio/usbboot/internal/daemon"
	"github.com/zxhio/usbboot/pkg/netaddr"
	"github.com/zxhio/usbboot/pkg/utils"
)

var flagKeys = map[string]string{
	config.KeyBootDir:          "dir",
	config.KeyBootSPLFile:      "spl",
	config.KeyBootImageFile:    "image",
	config.KeyBootTerminalStep: "terminal-step",
	config.KeyNetServerIP:      "server-ip",
	config.KeyNetClientIP:      "client-ip",
	config.KeyAPIAddr:          "addr",
}

var serverIP, clientIP netaddr.IPv4Addr

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve boot files to attached devices in the foreground",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := util.LoadConfig(cmd, flagKeys)
		utils.CheckErrorAndExit(err, "Load config")
		daemon.SetupLogging(cfg.Log)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := newProgress(os.Stdout)
		utils.CheckErrorAndExit(err, "Start progress")

		err = daemon.Run(ctx, cfg, daemon.WithEventHandler(p.Handle))
		p.Stop()
		utils.CheckErrorAndExit(err, "Serve")
	},
}

func init() {
	serveCmd.Flags().StringP("dir", "d", "", "Boot file directory")
	serveCmd.Flags().String("spl", "", "First stage file requested by the ROM")
	serveCmd.Flags().String("image", "", "Second stage file requested by the SPL")
	serveCmd.Flags().Int("terminal-step", 0, "Transfers counted as a complete boot")
	serveCmd.Flags().Var(&serverIP, "server-ip", "Address of the host on the device link")
	serveCmd.Flags().Var(&clientIP, "client-ip", "Address handed out to devices")
	serveCmd.Flags().String("addr", "", "Status API listen address, empty disables the api")
	util.DisableSortFlags(serveCmd)
}

func Export(parent *cobra.Command) {
	parent.AddCommand(serveCmd)
}
