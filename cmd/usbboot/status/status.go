package status

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/zxhio/usbboot/cmd/usbboot/util"
	"github.com/zxhio/usbboot/internal/api"
	"github.com/zxhio/usbboot/internal/boot"
	"github.com/zxhio/usbboot/pkg/humanize"
	"github.com/zxhio/usbboot/pkg/netutil"
	"github.com/zxhio/usbboot/pkg/utils"
)

var (
	addr     string
	watch    time.Duration
	showRate bool
)

var statusCmd = &cobra.Command{
	Use:   "status [port]",
	Short: "Show boot transactions of the running daemon",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if addr == "" {
			cfg, err := util.LoadConfig(cmd, nil)
			utils.CheckErrorAndExit(err, "Load config")
			addr = util.APIAddr(cfg)
		}
		client := api.NewClient(addr)

		query := func() ([]boot.TransactionInfo, error) {
			if len(args) == 0 {
				return client.QueryAllTransactions()
			}
			info, err := client.QueryTransaction(args[0])
			if err != nil {
				return nil, err
			}
			return []boot.TransactionInfo{*info}, nil
		}

		prev := make(map[string]netutil.Statistics)
		for {
			infos, err := query()
			utils.CheckErrorAndExit(err, "Query transactions failed")
			display(os.Stdout, infos, prev, time.Now())
			if watch <= 0 {
				return
			}
			fmt.Println()
			time.Sleep(watch)
		}
	},
}

func init() {
	statusCmd.Flags().StringVar(&addr, "addr", "", "Daemon api address (default from config)")
	statusCmd.Flags().DurationVarP(&watch, "watch", "w", 0, "Refresh interval, 0 prints once")
	statusCmd.Flags().BoolVar(&showRate, "rate", false, "Show transfer rate since the previous refresh")
	util.DisableSortFlags(statusCmd)
}

func Export(parent *cobra.Command) {
	parent.AddCommand(statusCmd)
}

func display(w io.Writer, infos []boot.TransactionInfo, prev map[string]netutil.Statistics, now time.Time) {
	headers := []string{"port", "device", "session", "stage", "file", "step", "progress", "rx", "tx", "age"}
	if showRate {
		headers = append(headers, "rx_rate", "tx_rate")
	}
	table := util.NewTable(w, headers...)

	for _, info := range infos {
		progress := fmt.Sprintf("%d%%", info.Progress)
		if info.Progress >= 100 {
			progress = color.HiGreenString(progress)
		} else if !info.Serving {
			progress = color.YellowString(progress)
		}

		row := []string{
			info.PortID,
			info.DeviceID,
			shortID(info.ID),
			info.Stage,
			info.File,
			fmt.Sprintf("%d/%d", info.Step, info.Terminal),
			progress,
			fmt.Sprintf("%d (%s)", info.Stats.RxFrames, humanize.IBytes(info.Stats.RxBytes)),
			fmt.Sprintf("%d (%s)", info.Stats.TxFrames, humanize.IBytes(info.Stats.TxBytes)),
			humanize.Age(now.Sub(info.Created)),
		}
		if showRate {
			rate := info.Stats.Rate(prev[info.ID])
			prev[info.ID] = info.Stats
			row = append(row, humanize.BitsRate(rate.RxBPS), humanize.BitsRate(rate.TxBPS))
		}
		table.Append(row)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
