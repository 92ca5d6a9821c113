package device

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/usbboot/cmd/usbboot/util"
	"github.com/zxhio/usbboot/internal/api"
	"github.com/zxhio/usbboot/internal/usb/usbfs"
	"github.com/zxhio/usbboot/pkg/utils"
)

var (
	remote      bool
	capableOnly bool
	addr        string
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Short:   "List USB devices and mark the bootable ones",
	Aliases: []string{"dev", "ls"},
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			devices []api.DeviceStatus
			err     error
		)
		if remote {
			devices, err = queryRemote(cmd)
		} else {
			devices, err = queryLocal()
		}
		utils.CheckErrorAndExit(err, "Query devices failed")
		display(os.Stdout, devices)
	},
}

func init() {
	devicesCmd.Flags().BoolVarP(&remote, "remote", "r", false, "Query the daemon instead of sysfs")
	devicesCmd.Flags().BoolVarP(&capableOnly, "capable", "b", false, "Only list bootable devices")
	devicesCmd.Flags().StringVar(&addr, "addr", "", "Daemon api address (default from config)")
	util.DisableSortFlags(devicesCmd)
}

func Export(parent *cobra.Command) {
	parent.AddCommand(devicesCmd)
}

func queryLocal() ([]api.DeviceStatus, error) {
	infos, err := usbfs.New().Devices()
	if err != nil {
		return nil, err
	}
	utils.VerbosePrintln("Found %d devices in sysfs", len(infos))

	var devices []api.DeviceStatus
	for _, info := range infos {
		if info.Partial {
			continue
		}
		status := api.NewDeviceStatus(info)
		if capableOnly && !status.BootCapable {
			continue
		}
		devices = append(devices, status)
	}
	return devices, nil
}

func queryRemote(cmd *cobra.Command) ([]api.DeviceStatus, error) {
	if addr == "" {
		cfg, err := util.LoadConfig(cmd, nil)
		if err != nil {
			return nil, err
		}
		addr = util.APIAddr(cfg)
	}
	resp, err := api.NewClient(addr).QueryDevices(capableOnly)
	if err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func display(w io.Writer, devices []api.DeviceStatus) {
	table := util.NewTable(w, "device", "port", "id", "class", "configs", "stage", "bootable")
	for _, d := range devices {
		bootable := "no"
		if d.BootCapable {
			bootable = color.HiGreenString("yes")
		}
		table.Append([]string{
			d.ID,
			d.PortID(),
			fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID),
			fmt.Sprintf("0x%02x", d.Class),
			fmt.Sprintf("%d", d.NumConfigurations),
			d.Stage,
			bootable,
		})
	}
	table.Render()
}
