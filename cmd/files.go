package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidbench-cli/internal/config"
	"github.com/xkilldash9x/droidbench-cli/internal/device"
	"github.com/xkilldash9x/droidbench-cli/internal/observability"
)

// newFilesCmd creates the `files` command group for moving files between the
// host and the device through the controller's staging flow.
func newFilesCmd() *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Copies files between the host and the device",
	}

	pullCmd := &cobra.Command{
		Use:   "pull <remote-path> <local-path>",
		Short: "Copies a file from the device to the host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			controller, err := connectController(logger)
			if err != nil {
				return err
			}
			defer controller.Close()

			staged, cleanup, err := controller.PullFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to pull %s: %w", args[0], err)
			}
			defer cleanup()

			if err := copyToHost(staged, args[1]); err != nil {
				return err
			}
			logger.Info("Pulled file from device",
				zap.String("remote", args[0]),
				zap.String("local", args[1]))
			return nil
		},
	}

	pushCmd := &cobra.Command{
		Use:   "push <local-path> <remote-path>",
		Short: "Copies a file from the host to the device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			controller, err := connectController(logger)
			if err != nil {
				return err
			}
			defer controller.Close()

			if err := controller.PushFile(args[0], args[1]); err != nil {
				return fmt.Errorf("failed to push %s: %w", args[0], err)
			}
			logger.Info("Pushed file to device",
				zap.String("local", args[0]),
				zap.String("remote", args[1]))
			return nil
		},
	}

	filesCmd.AddCommand(pullCmd, pushCmd)
	return filesCmd
}

// connectController builds a controller without the snapshot machinery; file
// transfer only needs the shell and file capabilities of the root handle.
func connectController(logger *zap.Logger) (*device.Controller, error) {
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	devCfg := cfg.Device()
	devCfg.A11yMethod = config.A11yMethodNone

	controller, err := device.Connect(devCfg, cfg.Snapshot(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device: %w", err)
	}
	return controller, nil
}

func copyToHost(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Sync()
}
