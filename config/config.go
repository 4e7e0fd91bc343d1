package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "config.toml"

const (
	ModeONNX = "onnx"
	ModeMock = "mock"
)

type Config struct {
	Host        string `toml:"host" mapstructure:"host"`
	Port        string `toml:"port" mapstructure:"port"`
	Mode        string `toml:"mode" mapstructure:"mode"`
	Libonnx     string `toml:"libonnx" mapstructure:"libonnx"`
	AllowOrigin string `toml:"allow_origin" mapstructure:"allow_origin"`
	MaxUploadMB int64  `toml:"max_upload_mb" mapstructure:"max_upload_mb"`

	ModelInfo    string  `toml:"model_info" mapstructure:"model_info"`
	ImageSize    int     `toml:"image_size" mapstructure:"image_size"`
	Sessions     int     `toml:"sessions" mapstructure:"sessions"`
	HeatmapDir   string  `toml:"heatmap_dir" mapstructure:"heatmap_dir"`
	OverlayAlpha float64 `toml:"overlay_alpha" mapstructure:"overlay_alpha"`

	MockMinConfidence float64 `toml:"mock_min_confidence" mapstructure:"mock_min_confidence"`
	MockMaxConfidence float64 `toml:"mock_max_confidence" mapstructure:"mock_max_confidence"`

	LogLevel  string `toml:"log_level" mapstructure:"log_level"`
	LogFormat string `toml:"log_format" mapstructure:"log_format"`
}

func Default() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              "8501",
		Mode:              ModeONNX,
		AllowOrigin:       "*",
		MaxUploadMB:       10,
		ModelInfo:         "utils/model_info.json",
		ImageSize:         224,
		Sessions:          1,
		HeatmapDir:        "grad-cams",
		OverlayAlpha:      0.4,
		MockMinConfidence: 70.0,
		MockMaxConfidence: 99.9,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load overlays the TOML file at path onto Default. A missing file is not an
// error; a malformed or invalid one is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeONNX, ModeMock:
	default:
		return fmt.Errorf("invalid mode %q, want %q or %q", c.Mode, ModeONNX, ModeMock)
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", c.ImageSize)
	}
	if c.Sessions <= 0 {
		return fmt.Errorf("sessions must be positive, got %d", c.Sessions)
	}
	if c.OverlayAlpha < 0 || c.OverlayAlpha > 1 {
		return fmt.Errorf("overlay_alpha must be within [0, 1], got %v", c.OverlayAlpha)
	}
	if c.MockMinConfidence <= 0 || c.MockMaxConfidence > 100 || c.MockMinConfidence > c.MockMaxConfidence {
		return fmt.Errorf("mock confidence range (%v, %v] is invalid", c.MockMinConfidence, c.MockMaxConfidence)
	}
	if c.Mode == ModeONNX && c.ModelInfo == "" {
		return errors.New("model_info is required in onnx mode")
	}
	return nil
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
