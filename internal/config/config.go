package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mzyy94/airbeagle/internal/raster"
	"github.com/mzyy94/airbeagle/internal/transport"
	"github.com/mzyy94/airbeagle/internal/upload"
)

// Environment variables read by ApplyEnv.
const (
	EnvDevice      = "AIRBEAGLE_DEVICE"
	EnvBaud        = "AIRBEAGLE_BAUD"
	EnvQueueSize   = "AIRBEAGLE_QUEUE_SIZE"
	EnvFiller      = "AIRBEAGLE_FILLER"
	EnvContainer   = "AIRBEAGLE_CONTAINER"
	EnvListenPort  = "AIRBEAGLE_LISTEN_PORT"
	EnvDataDir     = "AIRBEAGLE_DATA_DIR"
	EnvServiceName = "AIRBEAGLE_SERVICE_NAME"
	EnvLogLevel    = "AIRBEAGLE_LOG_LEVEL"
)

// Settings holds everything the CLI and the server can be configured with.
type Settings struct {
	Device        string `toml:"device" json:"device"`
	Baud          int    `toml:"baud" json:"baud"`
	QueueSize     int    `toml:"queue_size" json:"queueSize"`
	Filler        string `toml:"filler" json:"filler"`       // "canonical", "legacy" or a byte such as "0x81"
	Container     string `toml:"container" json:"container"` // "gzip" or "zlib"
	ListenPort    int    `toml:"listen_port" json:"listenPort"`
	DataDir       string `toml:"data_dir" json:"dataDir"`
	ServiceName   string `toml:"service_name" json:"serviceName"`
	DefaultAuthor string `toml:"default_author" json:"defaultAuthor"`
	LogLevel      string `toml:"log_level" json:"logLevel"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Device:      "/dev/rfcomm0",
		Baud:        transport.DefaultBaud,
		QueueSize:   upload.DefaultQueueSize,
		Filler:      "canonical",
		Container:   raster.ContainerGzip.String(),
		ListenPort:  8080,
		DataDir:     defaultDataDir(),
		ServiceName: "airbeagle",
		LogLevel:    "info",
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "airbeagle"
	}
	return ".airbeagle"
}

// ParseFiller converts the filler setting to the trailer byte.
func ParseFiller(s string) (byte, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "canonical":
		return raster.DefaultFiller, nil
	case "legacy":
		return raster.LegacyFiller, nil
	default:
		n, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			return 0, fmt.Errorf("bad filler %q", s)
		}
		return byte(n), nil
	}
}

// Codec builds the raster codec these settings describe.
func (s Settings) Codec() (raster.Codec, error) {
	filler, err := ParseFiller(s.Filler)
	if err != nil {
		return raster.Codec{}, err
	}
	container, err := raster.ParseContainer(s.Container)
	if err != nil {
		return raster.Codec{}, err
	}
	return raster.Codec{Filler: filler, Container: container}, nil
}

// Validate reports the first invalid field.
func (s Settings) Validate() error {
	if s.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", s.Baud)
	}
	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}
	if s.ListenPort < 0 || s.ListenPort > 65535 {
		return fmt.Errorf("listen_port out of range: %d", s.ListenPort)
	}
	if _, err := s.Codec(); err != nil {
		return err
	}
	return nil
}

type fileSettings struct {
	Device        string `toml:"device"`
	Baud          int    `toml:"baud"`
	QueueSize     int    `toml:"queue_size"`
	Filler        string `toml:"filler"`
	Container     string `toml:"container"`
	ListenPort    int    `toml:"listen_port"`
	DataDir       string `toml:"data_dir"`
	ServiceName   string `toml:"service_name"`
	DefaultAuthor string `toml:"default_author"`
	LogLevel      string `toml:"log_level"`
}

// LoadFile overlays the keys present in the TOML file at path onto base.
func LoadFile(path string, base Settings) (Settings, error) {
	var raw fileSettings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	cfg := base
	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("queue_size") {
		cfg.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("filler") {
		cfg.Filler = strings.TrimSpace(raw.Filler)
	}
	if meta.IsDefined("container") {
		cfg.Container = strings.TrimSpace(raw.Container)
	}
	if meta.IsDefined("listen_port") {
		cfg.ListenPort = raw.ListenPort
	}
	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}
	if meta.IsDefined("service_name") {
		cfg.ServiceName = strings.TrimSpace(raw.ServiceName)
	}
	if meta.IsDefined("default_author") {
		cfg.DefaultAuthor = raw.DefaultAuthor
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return cfg, nil
}

// ApplyEnv overrides s with any AIRBEAGLE_* variables that are set.
func ApplyEnv(s *Settings) {
	s.Device = envStr(EnvDevice, s.Device)
	s.Baud = envInt(EnvBaud, s.Baud)
	s.QueueSize = envInt(EnvQueueSize, s.QueueSize)
	s.Filler = envStr(EnvFiller, s.Filler)
	s.Container = envStr(EnvContainer, s.Container)
	s.ListenPort = envInt(EnvListenPort, s.ListenPort)
	s.DataDir = envStr(EnvDataDir, s.DataDir)
	s.ServiceName = envStr(EnvServiceName, s.ServiceName)
	s.LogLevel = envStr(EnvLogLevel, s.LogLevel)
}

// Load resolves settings from defaults, the optional file at path and the
// environment, in that order.
func Load(path string) (Settings, error) {
	cfg := DefaultSettings()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path, cfg); err != nil {
			return Settings{}, err
		}
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
