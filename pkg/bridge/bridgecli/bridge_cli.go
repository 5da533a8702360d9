package bridgecli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sstallion/go-hid"

	"github.com/aelman/ipad-remote/hidreport"
	"github.com/aelman/ipad-remote/internal/capture"
	"github.com/aelman/ipad-remote/pkg/bridge"
)

func Main(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	dir, err := os.UserConfigDir()
	if err != nil {
		return err
	}
	cmd := NewRootCmd(filepath.Join(dir, "ipad-remote"))
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

type bridgeProvider func() *bridge.Bridge

func NewRootCmd(configDir string) *cobra.Command {
	cfg := bridge.Config{
		DataDir:  filepath.Join(configDir, "data"),
		Settings: filepath.Join(configDir, "settings.yml"),
	}
	rootCmd := &cobra.Command{
		Use:   "ipad-remote",
		Short: "BLE HID bridge",
		Long:  `ipad-remote exposes this machine's keyboard and mouse to a tablet as a Bluetooth LE HID peripheral.`,
	}
	var b *bridge.Bridge
	provider := func() *bridge.Bridge {
		return b
	}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&cfg.Settings, "settings", cfg.Settings, "settings file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		b, err = bridge.NewBridge(cfg)
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if b != nil {
			return b.Close()
		}
		return nil
	}
	rootCmd.AddCommand(NewRun(provider))
	rootCmd.AddCommand(NewPeers(provider))
	rootCmd.AddCommand(NewDevices())
	rootCmd.AddCommand(NewReportMap())
	return rootCmd
}

func NewRun(bridge bridgeProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		Long:  `Runs the bridge until interrupted or the shutdown hotkey is pressed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return bridge().Run(cmd.Context())
		},
	}
}

func NewPeers(bridge bridgeProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List known centrals",
		Long:  `Lists every central that has connected to the bridge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, err := bridge().Peers().List()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(peers, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))
			return nil
		},
	}
}

func NewDevices() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List input devices",
		Long:  `Lists capture candidates from the input subsystem and the hidraw devices behind them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := capture.ListDevices()
			if err != nil {
				return err
			}
			jsonB, err := json.MarshalIndent(devices, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonB))

			return hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %04x:%04x %s %s\n",
					info.Path, info.VendorID, info.ProductID, info.MfrStr, info.ProductStr)
				return nil
			})
		},
	}
}

func NewReportMap() *cobra.Command {
	return &cobra.Command{
		Use:   "report-map",
		Short: "Dump the HID report map",
		Long:  `Prints the composite keyboard and mouse report descriptor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), hex.Dump(hidreport.ReportMap))
			return nil
		},
	}
}
