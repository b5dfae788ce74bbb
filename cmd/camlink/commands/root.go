package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/CamLink/internal/config"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configKeyAnnotation maps a flag to the config key it overrides
const configKeyAnnotation = "camlink_config_key"

var (
	cfgFile   string
	pretty    bool
	configMgr *config.Manager

	rootCmd = &cobra.Command{
		Use:   "camlink",
		Short: "CamLink - stream a camera over TCP and view it remotely",
		Long: `CamLink captures frames from a local camera and streams them as
length-prefixed JPEG images over a raw TCP socket. The viewer connects to a
server, decodes each frame and shows it in the browser or a native window.

Features:
  • Webcam capture with a synthetic test pattern fallback
  • Single-connection stream server that recovers from capture failures
  • Web viewer with live status log
  • Chessboard camera calibration
  • Persistent configuration`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/camlink/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "human-readable console logs")

	bindFlag(rootCmd.PersistentFlags(), "log-level", "log_level")
}

// bindFlag marks a flag as overriding a config key once the config is loaded
func bindFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// loadConfig loads the config file, applies flag overrides and sets up logging
func loadConfig(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	v := mgr.GetViper()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || !f.Changed {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return bindErr
	}
	if err := mgr.Refresh(); err != nil {
		return err
	}

	logger.Init(mgr.Get().LogLevel, pretty)
	configMgr = mgr
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
