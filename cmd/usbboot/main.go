package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/usbboot/cmd/usbboot/device"
	"github.com/zxhio/usbboot/cmd/usbboot/serve"
	"github.com/zxhio/usbboot/cmd/usbboot/status"
	"github.com/zxhio/usbboot/cmd/usbboot/util"
	"github.com/zxhio/usbboot/pkg/builder"
	"github.com/zxhio/usbboot/pkg/utils"
)

var version bool

const logoAscii = `                 |  |
 |  | (_-<  _ \  _ \  _ \  _ \   _|
\_,_| ___/ ___/ ___/ ___/ ___/ \__|`

var rootCmd = &cobra.Command{
	Use:   "usbboot",
	Short: "Boot AM335x boards over USB\n\n" + color.HiBlueString(logoAscii),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.SetVerbose(util.Verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if version {
			fmt.Println(builder.BuildInfo())
			os.Exit(0)
		}
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := builder.Get()
		if !util.Verbose {
			fmt.Println(info)
			return
		}
		table := util.NewTable(os.Stdout, "key", "value")
		table.Bulk([][]string{
			{"program", info.Program},
			{"version", info.Version},
			{"commit", info.Commit},
			{"date", info.Date},
			{"go", info.GoVersion},
		})
		table.Render()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := util.LoadConfig(cmd, nil)
		utils.CheckErrorAndExit(err, "Load config")

		data, err := cfg.YAML()
		utils.CheckErrorAndExit(err, "Render config")
		if cfg.File != "" {
			fmt.Printf("# %s\n", cfg.File)
		}
		fmt.Print(string(data))
	},
}

func main() {
	cobra.EnableTraverseRunHooks = true
	serve.Export(rootCmd)
	device.Export(rootCmd)
	status.Export(rootCmd)
	rootCmd.AddCommand(configCmd, versionCmd)

	rootCmd.PersistentFlags().BoolVarP(&util.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&util.ConfigFile, "config", "c", "", "Config file (default search /etc/usbboot/usbboot.yaml, ./usbboot.yaml)")
	rootCmd.Flags().BoolVarP(&version, "version", "V", false, "Print version")
	util.DisableSortFlags(rootCmd, configCmd, versionCmd)
	rootCmd.Execute()
}
