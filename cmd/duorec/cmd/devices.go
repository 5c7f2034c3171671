package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/VCasecnikovs/duorec/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available capture devices",
	Long: `Lists all input-capable audio devices known to PortAudio, marking the
default input device and devices usable as a system-output tap.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := capture.ListInputDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("No input devices found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCHANNELS\tSAMPLE RATE\tFLAGS")
	for _, d := range devices {
		flags := ""
		if d.IsDefault {
			flags = "default"
		}
		if d.IsLoopback {
			if flags != "" {
				flags += ","
			}
			flags += "loopback"
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f Hz\t%s\n", d.Name, d.MaxInputChannels, d.DefaultSampleRate, flags)
	}
	return w.Flush()
}
