package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

type Server struct {
	Bind          string   `toml:"bind"`
	MaxUploadSize int64    `toml:"max_upload_size"`
	SessionTTL    Duration `toml:"session_ttl"`
}

type Storage struct {
	UploadDir string `toml:"upload_dir"`
	DBPath    string `toml:"db_path"`
}

type Training struct {
	TotalSteps   int      `toml:"total_steps"`
	TickInterval Duration `toml:"tick_interval"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server   Server   `toml:"server"`
	Storage  Storage  `toml:"storage"`
	Training Training `toml:"training"`
	Logging  Logging  `toml:"logging"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func Default() Config {
	return Config{
		Server: Server{
			Bind:          ":8080",
			MaxUploadSize: 100 * 1024 * 1024,
			SessionTTL:    Duration(30 * time.Minute),
		},
		Storage: Storage{
			UploadDir: "./uploads",
			DBPath:    ":memory:",
		},
		Training: Training{
			TotalSteps:   100,
			TickInterval: Duration(200 * time.Millisecond),
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads the TOML file at path (if it exists) over the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, false, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			exists = true
			decoder := toml.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	return &cfg, exists, nil
}

// LoadDotEnv exports the KEY=value pairs in path into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Bind = ":" + port
	}
	str(&c.Server.Bind, "LANEPILOT_BIND")
	str(&c.Storage.UploadDir, "LANEPILOT_UPLOAD_DIR", "UPLOAD_DIR")
	str(&c.Storage.DBPath, "LANEPILOT_DB_PATH", "DB_PATH")
	str(&c.Logging.Level, "LANEPILOT_LOG_LEVEL")
	str(&c.Logging.Format, "LANEPILOT_LOG_FORMAT")

	for _, k := range []string{"LANEPILOT_MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE"} {
		if v, ok := lookup(k); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", k, err)
			}
			c.Server.MaxUploadSize = n
			break
		}
	}

	if v, ok := lookup("LANEPILOT_SESSION_TTL"); ok && v != "" {
		if err := c.Server.SessionTTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid LANEPILOT_SESSION_TTL: %w", err)
		}
	}

	if v, ok := lookup("LANEPILOT_TICK_INTERVAL"); ok && v != "" {
		if err := c.Training.TickInterval.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid LANEPILOT_TICK_INTERVAL: %w", err)
		}
	}

	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Server.Bind == "" {
		problems = append(problems, "server.bind must not be empty")
	}
	if c.Server.MaxUploadSize <= 0 {
		problems = append(problems, "server.max_upload_size must be positive")
	}
	if c.Server.SessionTTL < 0 {
		problems = append(problems, "server.session_ttl must not be negative")
	}
	if c.Storage.UploadDir == "" {
		problems = append(problems, "storage.upload_dir must not be empty")
	}
	if c.Training.TotalSteps <= 0 {
		problems = append(problems, "training.total_steps must be positive")
	}
	if c.Training.TickInterval <= 0 {
		problems = append(problems, "training.tick_interval must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "auto", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of auto, console, json", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CreateSample writes the commented sample configuration to path. It refuses
// to overwrite an existing file.
func CreateSample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(sampleConfig); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
