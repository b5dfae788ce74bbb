package commands

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bryanchriswhite/CamLink/internal/capture"
	"github.com/bryanchriswhite/CamLink/internal/capture/webcam"
	"github.com/bryanchriswhite/CamLink/internal/codec"
	"github.com/bryanchriswhite/CamLink/internal/config"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/stream"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture the camera and stream it to one viewer",
	Long: `Start the stream server. It waits for a viewer to connect, then captures
frames from the camera and sends each one as a 4-byte little-endian length
followed by the JPEG bytes.

If the camera fails mid-stream the connection is dropped and the server waits
for the next viewer, reopening the camera when it connects.`,
	Example: `  # Stream the default webcam on port 12345
  camlink serve

  # Stream a synthetic test pattern on a custom port
  camlink serve --source pattern --port 9000

  # Use the second camera at 1280x720
  camlink serve --device 1 --width 1280 --height 720`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("host", "", "listen address (default all interfaces)")
	f.Int("port", 0, "listen port (default 12345)")
	f.String("source", "", "frame source: auto, webcam or pattern")
	f.Int("device", 0, "camera index")
	f.Int("width", 0, "capture width")
	f.Int("height", 0, "capture height")
	f.Int("fps", 0, "capture frame rate")
	f.Int("quality", 0, "JPEG quality (1-100)")

	bindFlag(f, "host", "server.host")
	bindFlag(f, "port", "server.port")
	bindFlag(f, "source", "camera.source")
	bindFlag(f, "device", "camera.device")
	bindFlag(f, "width", "camera.width")
	bindFlag(f, "height", "camera.height")
	bindFlag(f, "fps", "camera.fps")
	bindFlag(f, "quality", "encoder.quality")
}

// newSource builds the frame source selected by the camera config
func newSource(cfg config.CameraConfig) capture.Source {
	capCfg := capture.Config{
		Device: cfg.Device,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
	}

	switch cfg.Source {
	case "webcam":
		return webcam.NewSource(capCfg)
	case "pattern":
		return capture.NewPatternSource(capCfg)
	default:
		return capture.NewRouter(webcam.NewSource(capCfg), capture.NewPatternSource(capCfg))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")
	cfg := configMgr.Get()

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("source", cfg.Camera.Source).
		Msg("Configuration loaded")

	server := stream.NewServer(stream.ServerConfig{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		WriteTimeout: cfg.Server.WriteTimeout,
	}, newSource(cfg.Camera), codec.NewJPEG(cfg.Encoder.Quality))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	log.Info().Msg("Shutting down gracefully...")
	return nil
}
