package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/dissect/internal/capture"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long: `List the devices that can be passed to --interface. The device marked
with * is used when no interface is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := newBackend(cfg.Capture)
			if err != nil {
				return err
			}
			return runDevices(b, cmd.OutOrStdout())
		},
	}
}

func runDevices(b capture.Backend, out io.Writer) error {
	devices, err := capture.ListDevices(b)
	if err != nil {
		return err
	}
	def, _ := capture.ResolveDevice(devices, "")

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tADDRESSES\tDESCRIPTION")
	for _, d := range devices {
		mark := ""
		if d.Name == def {
			mark = "*"
		}
		addrs := make([]string, 0, len(d.Addresses))
		for _, ip := range d.Addresses {
			addrs = append(addrs, ip.String())
		}
		name := d.Name
		if d.Loopback {
			name += " (loopback)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, name, strings.Join(addrs, ","), d.Description)
	}
	return w.Flush()
}
