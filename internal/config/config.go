package config

import (
	"fmt"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	Server      ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
	Camera      CameraConfig      `json:"camera" yaml:"camera" mapstructure:"camera"`
	Encoder     EncoderConfig     `json:"encoder" yaml:"encoder" mapstructure:"encoder"`
	Client      ClientConfig      `json:"client" yaml:"client" mapstructure:"client"`
	Viewer      ViewerConfig      `json:"viewer" yaml:"viewer" mapstructure:"viewer"`
	Calibration CalibrationConfig `json:"calibration" yaml:"calibration" mapstructure:"calibration"`
}

// ServerConfig configures the capture side
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host" mapstructure:"host"`
	Port         int           `json:"port" yaml:"port" mapstructure:"port"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
}

// CameraConfig selects and configures the frame source
type CameraConfig struct {
	// Source is "webcam", "pattern" or "auto" (webcam, falling back to pattern)
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Device int    `json:"device" yaml:"device" mapstructure:"device"`
	Width  int    `json:"width" yaml:"width" mapstructure:"width"`
	Height int    `json:"height" yaml:"height" mapstructure:"height"`
	FPS    int    `json:"fps" yaml:"fps" mapstructure:"fps"`
}

// EncoderConfig configures JPEG encoding on the server
type EncoderConfig struct {
	Quality int `json:"quality" yaml:"quality" mapstructure:"quality"`
}

// ClientConfig configures the viewer's stream connection
type ClientConfig struct {
	Host         string        `json:"host" yaml:"host" mapstructure:"host"`
	Port         int           `json:"port" yaml:"port" mapstructure:"port"`
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval" mapstructure:"tick_interval"`
	MaxFrameSize int           `json:"max_frame_size" yaml:"max_frame_size" mapstructure:"max_frame_size"`
}

// ViewerConfig configures the viewer's display and HTTP API
type ViewerConfig struct {
	HTTPPort int  `json:"http_port" yaml:"http_port" mapstructure:"http_port"`
	Width    int  `json:"width" yaml:"width" mapstructure:"width"`
	Height   int  `json:"height" yaml:"height" mapstructure:"height"`
	Overlay  bool `json:"overlay" yaml:"overlay" mapstructure:"overlay"`
	Window   bool `json:"window" yaml:"window" mapstructure:"window"`
}

// CalibrationConfig describes the chessboard used by `camlink calibrate`
type CalibrationConfig struct {
	Cols       int     `json:"cols" yaml:"cols" mapstructure:"cols"`
	Rows       int     `json:"rows" yaml:"rows" mapstructure:"rows"`
	SquareSize float64 `json:"square_size" yaml:"square_size" mapstructure:"square_size"`
	Output     string  `json:"output" yaml:"output" mapstructure:"output"`
}

// defaults is the flattened default configuration, keyed as viper keys
func defaults() map[string]any {
	return map[string]any{
		"log_level": "info",

		"server.host":          "",
		"server.port":          protocol.DefaultPort,
		"server.write_timeout": time.Duration(0),

		"camera.source": "auto",
		"camera.device": 0,
		"camera.width":  640,
		"camera.height": 480,
		"camera.fps":    30,

		"encoder.quality": 90,

		"client.host":           "127.0.0.1",
		"client.port":           protocol.DefaultPort,
		"client.tick_interval":  30 * time.Millisecond,
		"client.max_frame_size": 64 << 20,

		"viewer.http_port": 8080,
		"viewer.width":     640,
		"viewer.height":    480,
		"viewer.overlay":   true,
		"viewer.window":    false,

		"calibration.cols":        9,
		"calibration.rows":        6,
		"calibration.square_size": 0.025,
		"calibration.output":      "calibration.yaml",
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", c.LogLevel)
	}
	for name, port := range map[string]int{
		"server.port":      c.Server.Port,
		"client.port":      c.Client.Port,
		"viewer.http_port": c.Viewer.HTTPPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
	}
	switch c.Camera.Source {
	case "auto", "webcam", "pattern":
	default:
		return fmt.Errorf("invalid camera.source: %q (use: auto, webcam, pattern)", c.Camera.Source)
	}
	if c.Encoder.Quality < 1 || c.Encoder.Quality > 100 {
		return fmt.Errorf("invalid encoder.quality: %d (1-100)", c.Encoder.Quality)
	}
	if c.Client.TickInterval <= 0 {
		return fmt.Errorf("invalid client.tick_interval: %s", c.Client.TickInterval)
	}
	if c.Client.MaxFrameSize < 0 {
		return fmt.Errorf("invalid client.max_frame_size: %d", c.Client.MaxFrameSize)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("invalid server.write_timeout: %s", c.Server.WriteTimeout)
	}
	return nil
}
