package watermark

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrInvalidConfig = errors.New("invalid watermark configuration")
	ErrEmptyImage    = errors.New("image has no pixels")
	ErrLogo          = errors.New("logo unavailable")
)

// Opacity limits, in percent.
const (
	MinOpacity = 10
	MaxOpacity = 100
)

// ConfigError reports a configuration problem with the offending field.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidConfig
}

func newConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ColorMode selects the colour pairing used for every element of one pass.
type ColorMode int

const (
	// ColorWhite draws white marks with a black outline and lifts dark logo pixels to white.
	ColorWhite ColorMode = iota
	// ColorBlack draws black marks with a white outline and drops light logo pixels to black.
	ColorBlack
	// ColorAuto picks white or black from the image content, once per image.
	ColorAuto
)

func (m ColorMode) String() string {
	switch m {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	case ColorAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseColorMode parses "white", "black" or "auto".
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white":
		return ColorWhite, nil
	case "black":
		return ColorBlack, nil
	case "auto":
		return ColorAuto, nil
	default:
		return ColorWhite, fmt.Errorf("invalid color mode: %s (valid: white, black, auto)", s)
	}
}

func (m ColorMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (m *ColorMode) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseColorMode(node.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// LogoPosition is the canvas corner the logo is anchored to.
type LogoPosition int

const (
	BottomRight LogoPosition = iota
	BottomLeft
	TopRight
	TopLeft
)

func (p LogoPosition) String() string {
	switch p {
	case BottomRight:
		return "bottom-right"
	case BottomLeft:
		return "bottom-left"
	case TopRight:
		return "top-right"
	case TopLeft:
		return "top-left"
	default:
		return "unknown"
	}
}

// ParseLogoPosition parses a corner name. An empty string means bottom-right.
func ParseLogoPosition(s string) (LogoPosition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bottom-right", "":
		return BottomRight, nil
	case "bottom-left":
		return BottomLeft, nil
	case "top-right":
		return TopRight, nil
	case "top-left":
		return TopLeft, nil
	default:
		return BottomRight, fmt.Errorf("invalid logo position: %s (valid: bottom-right, bottom-left, top-right, top-left)", s)
	}
}

func (p LogoPosition) MarshalYAML() (any, error) {
	return p.String(), nil
}

func (p *LogoPosition) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseLogoPosition(node.Value)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config describes one watermarking job. It is read-only once handed to New.
type Config struct {
	// Text is stamped Count times across the image. "(c)" becomes "©".
	Text string `yaml:"text"`

	// Count is the number of scattered text instances.
	Count int `yaml:"count"`

	// TextOpacity is the fill opacity in percent (10-100).
	TextOpacity int `yaml:"text-opacity"`

	// Color selects the text/outline/logo colour pairing.
	Color ColorMode `yaml:"color"`

	// LogoPath optionally points at a logo bitmap, preferably a PNG with alpha.
	LogoPath string `yaml:"logo-path,omitempty"`

	// LogoPosition is the corner the logo is anchored to.
	LogoPosition LogoPosition `yaml:"logo-position"`

	// LogoOpacity is the logo opacity in percent (10-100).
	LogoOpacity int `yaml:"logo-opacity"`

	// Metadata is copyright text handed to the output encoder verbatim.
	Metadata string `yaml:"metadata,omitempty"`
}

// DefaultConfig returns the defaults the interactive tool offered.
func DefaultConfig() Config {
	return Config{
		Count:        7,
		TextOpacity:  20,
		Color:        ColorWhite,
		LogoPosition: BottomRight,
		LogoOpacity:  35,
	}
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return newConfigError("text", "must not be empty")
	}
	if c.Count <= 0 {
		return newConfigError("count", fmt.Sprintf("must be greater than 0, got %d", c.Count))
	}
	if c.TextOpacity < MinOpacity || c.TextOpacity > MaxOpacity {
		return newConfigError("text-opacity", fmt.Sprintf("must be between %d and %d, got %d", MinOpacity, MaxOpacity, c.TextOpacity))
	}
	if c.LogoOpacity < MinOpacity || c.LogoOpacity > MaxOpacity {
		return newConfigError("logo-opacity", fmt.Sprintf("must be between %d and %d, got %d", MinOpacity, MaxOpacity, c.LogoOpacity))
	}
	switch c.Color {
	case ColorWhite, ColorBlack, ColorAuto:
	default:
		return newConfigError("color", fmt.Sprintf("unknown mode %d", c.Color))
	}
	switch c.LogoPosition {
	case BottomRight, BottomLeft, TopRight, TopLeft:
	default:
		return newConfigError("logo-position", fmt.Sprintf("unknown position %d", c.LogoPosition))
	}
	return nil
}

// LoadConfig reads a YAML template. Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read template: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "malformed template", Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as a YAML template.
func SaveConfig(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportConfig writes a shareable template without the machine-local logo path.
func ExportConfig(cfg Config, path string) error {
	cfg.LogoPath = ""
	return SaveConfig(cfg, path)
}
