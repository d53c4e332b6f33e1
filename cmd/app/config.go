package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Agrid-Dev/vdizone/internal/verification"
)

const EnvPrefix = "VDIZONE_"

type Config struct {
	ZoneID      string `koanf:"zone_id"`
	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt"`
		MODBUS ModbusConfig `koanf:"modbus"`
	} `koanf:"controllers"`

	Simulation SimulationConfig `koanf:"simulation"`
	Store      StoreConfig      `koanf:"store"`
	Log        LogConfig        `koanf:"log"`
}

type SimulationConfig struct {
	Case         string  `koanf:"case"` // selected case at start-up
	Days         int     `koanf:"days"`
	TicksPerHour int     `koanf:"ticks_per_hour"`
	Date         string  `koanf:"date"` // YYYY-MM-DD, day of the synthetic solar profile
	Latitude     float64 `koanf:"latitude"`
	Longitude    float64 `koanf:"longitude"`

	BuildingFile  string `koanf:"building_file"`
	SolarFile     string `koanf:"solar_file"`
	OutdoorFile   string `koanf:"outdoor_file"`
	ReferenceFile string `koanf:"reference_file"`

	RunOnStart bool `koanf:"run_on_start"`
}

type HTTPConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Addr           string        `koanf:"addr"`
	StreamInterval time.Duration `koanf:"stream_interval"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BrokerURL       string        `koanf:"broker_url"`
	ClientID        string        `koanf:"client_id"`
	BaseTopic       string        `koanf:"base_topic"`
	QoS             byte          `koanf:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	UnitID  byte   `koanf:"unit_id"`
}

type StoreConfig struct {
	Enabled bool   `koanf:"enabled"`
	DSN     string `koanf:"dsn"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

func defaultConfig() Config {
	var cfg Config
	cfg.ZoneID = "default"
	cfg.Controllers.HTTP.Addr = ":8080"
	cfg.Controllers.HTTP.StreamInterval = time.Second
	cfg.Controllers.MQTT.PublishInterval = time.Second
	cfg.Controllers.MODBUS.UnitID = 1
	cfg.Controllers.MODBUS.Addr = "127.0.0.1:1502"
	cfg.Simulation.Case = "case10"
	cfg.Simulation.Days = 60
	cfg.Simulation.TicksPerHour = 60
	cfg.Simulation.Date = "2015-07-15"
	cfg.Simulation.Latitude = 50.78
	cfg.Simulation.Longitude = 6.08
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// LoadConfig layers defaults, the config file (if present) and VDIZONE_*
// environment variables, in that order.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Config file missing → use defaults
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.ZoneID == "" {
		cfg.ZoneID = "default"
	}
	if !cfg.Controllers.HTTP.Enabled && !cfg.Controllers.MQTT.Enabled && !cfg.Controllers.MODBUS.Enabled {
		cfg.Controllers.HTTP.Enabled = true
	}
	if cfg.Controllers.MODBUS.UnitID == 0 {
		cfg.Controllers.MODBUS.UnitID = 1
	}
}

// sections whose keys nest one level: SECTION_KEY -> section.key
var sections = map[string]bool{
	"simulation": true,
	"store":      true,
	"log":        true,
}

// envKeyTransform maps an environment variable name (prefix already removed)
// to a koanf key path. CONTROLLERS_<NAME>_<KEY> nests twice; other known
// sections nest once; anything else is lower-cased as is.
func envKeyTransform(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	parts := strings.Split(s, "_")

	if parts[0] == "controllers" {
		if len(parts) < 3 {
			return s
		}
		return "controllers." + parts[1] + "." + strings.Join(parts[2:], "_")
	}
	if sections[parts[0]] && len(parts) > 1 {
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
	return s
}

// Options turns the simulation section into case-builder options.
func (c Config) Options() (verification.Options, error) {
	s := c.Simulation
	o := verification.Options{
		Days:          s.Days,
		TicksPerHour:  s.TicksPerHour,
		SolarFile:     s.SolarFile,
		OutdoorFile:   s.OutdoorFile,
		ReferenceFile: s.ReferenceFile,
		Latitude:      s.Latitude,
		Longitude:     s.Longitude,
	}
	if s.Date != "" {
		d, err := time.Parse(time.DateOnly, s.Date)
		if err != nil {
			return o, fmt.Errorf("simulation.date: %w", err)
		}
		o.Date = d
	}
	if s.BuildingFile != "" {
		p, err := verification.LoadBuilding(s.BuildingFile)
		if err != nil {
			return o, err
		}
		o.Building = &p
	}
	return o, nil
}

// NewLogger builds the process logger from the log section.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unsupported %q", c.Format)
	}
}
