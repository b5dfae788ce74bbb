package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/api"
	"github.com/bryanchriswhite/CamLink/internal/codec"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/output"
	"github.com/bryanchriswhite/CamLink/internal/output/window"
	"github.com/bryanchriswhite/CamLink/internal/overlay"
	"github.com/bryanchriswhite/CamLink/internal/stream"
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view [HOST]",
	Short: "Connect to a stream server and show the video",
	Long: `Start the viewer. Frames are decoded and served to the browser at
http://localhost:<http-port>/ together with a connect form and a live status
log. With --window the video is also shown in a native window.

If HOST is given the viewer connects immediately; otherwise use the web page.
A failed connection is reported and never retried automatically.`,
	Example: `  # Open the viewer and connect from the browser
  camlink view

  # Connect straight away to a server on another machine
  camlink view 192.168.1.20

  # Native window, custom stream port
  camlink view 192.168.1.20 --port 9000 --window`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	f := viewCmd.Flags()
	f.Int("port", 0, "stream server port (default 12345)")
	f.Int("http-port", 0, "viewer web page port (default 8080)")
	f.Duration("tick", 0, "receive interval (default 30ms)")
	f.Bool("window", false, "show a native window")
	f.Bool("overlay", true, "draw connection status onto frames")

	bindFlag(f, "port", "client.port")
	bindFlag(f, "http-port", "viewer.http_port")
	bindFlag(f, "tick", "client.tick_interval")
	bindFlag(f, "window", "viewer.window")
	bindFlag(f, "overlay", "viewer.overlay")
}

func runView(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("view")
	cfg := configMgr.Get()

	outCfg := output.Config{
		Width:   cfg.Viewer.Width,
		Height:  cfg.Viewer.Height,
		Quality: cfg.Encoder.Quality,
	}
	mjpeg := output.NewMJPEGOutput(outCfg)
	outputs := []output.Output{mjpeg}

	events := stream.NewStatusLog(200)
	var status stream.StatusSink = events

	var win *window.Window
	if cfg.Viewer.Window {
		win = window.New("CamLink", cfg.Viewer.Width, cfg.Viewer.Height)
		outputs = append(outputs, win)
		status = stream.StatusFunc(func(ev stream.Event) {
			events.Report(ev)
			win.Report(ev)
		})
	}

	display := output.NewDisplay(outCfg, outputs...)
	client := stream.NewClient(stream.ClientConfig{
		Port:         cfg.Client.Port,
		TickInterval: cfg.Client.TickInterval,
		MaxFrameSize: uint32(cfg.Client.MaxFrameSize),
	}, codec.NewJPEG(cfg.Encoder.Quality), display)
	client.SetStatusSink(status)

	if cfg.Viewer.Overlay {
		mgr := overlay.NewManager()
		if err := mgr.AddWidget(overlay.NewStatusWidget(client.Stats)); err != nil {
			return err
		}
		display.AddRenderer(mgr)
	}

	if err := display.Start(); err != nil {
		return err
	}
	defer display.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(client, mjpeg, events)
	server.SetConnectDefaults(cfg.Client.Host, cfg.Client.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Viewer.HTTPPort); err != nil {
			errCh <- err
			stop()
		}
	}()

	if len(args) == 1 {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Connect(connectCtx, args[0]); err != nil {
			log.Warn().Err(err).Msg("Initial connection failed, use the web page to retry")
		}
		cancel()
	}

	log.Info().
		Int("http_port", cfg.Viewer.HTTPPort).
		Msg("Viewer running, press Ctrl+C to stop")

	if win != nil {
		win.OnClosed(stop)
		go func() {
			<-ctx.Done()
			win.Stop()
		}()
		win.Run()
	} else {
		<-ctx.Done()
	}

	log.Info().Msg("Shutting down gracefully...")
	client.Disconnect()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown failed")
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
