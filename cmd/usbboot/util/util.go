package util

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/zxhio/usbboot/internal/config"
)

// Root persistent flags.
var (
	ConfigFile string
	Verbose    bool
)

func DisableSortFlags(cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.InheritedFlags().SortFlags = false
		cmd.PersistentFlags().SortFlags = false
		cmd.Flags().SortFlags = false
	}
}

// LoadConfig loads ConfigFile and binds the command's flags named in keys.
// Unknown flag names are skipped.
func LoadConfig(cmd *cobra.Command, keys map[string]string) (*config.Config, error) {
	opts := []config.LoadOpt{config.WithFlag(config.KeyLogVerbose, cmd.Flag("verbose"))}
	for key, name := range keys {
		opts = append(opts, config.WithFlag(key, cmd.Flag(name)))
	}
	return config.Load(ConfigFile, opts...)
}

// APIAddr is the address the daemon listens on for the given config.
// A wildcard host is queried on loopback.
func APIAddr(cfg *config.Config) string {
	addr := cfg.API.Addr
	if addr == "" {
		return ""
	}
	if addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}

func NewTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.SeparatorsNone,
				Lines:      tw.LinesNone,
			},
		})),
	)
	table.Header(headers)
	return table
}
