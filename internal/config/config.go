// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"firestige.xyz/vlanswitch/internal/core"
	"firestige.xyz/vlanswitch/internal/topology"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `vlanswitch:` root key in YAML.
type GlobalConfig struct {
	Node           NodeConfig           `mapstructure:"node"`
	Control        ControlConfig        `mapstructure:"control"`
	Kafka          GlobalKafkaConfig    `mapstructure:"kafka"`
	CommandChannel CommandChannelConfig `mapstructure:"command_channel"`
	Events         EventsConfig         `mapstructure:"events"`
	Dispatch       DispatchConfig       `mapstructure:"dispatch"`
	Engine         EngineConfig         `mapstructure:"engine"`
	Topology       TopologyConfig       `mapstructure:"topology"`
	Bindings       BindingsConfig       `mapstructure:"bindings"`
	API            APIConfig            `mapstructure:"api"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Log            LogConfig            `mapstructure:"log"`
	DataDir        string               `mapstructure:"data_dir"`
}

// ─── Node Identity ───

// NodeConfig contains node identification settings.
type NodeConfig struct {
	Hostname string            `mapstructure:"hostname"` // Empty = os.Hostname()
	Tags     map[string]string `mapstructure:"tags"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Kafka Global Default ───

// GlobalKafkaConfig provides shared Kafka connection defaults.
// command_channel.kafka, events.kafka and dispatch.kafka inherit from here
// when their fields are zero.
type GlobalKafkaConfig struct {
	Brokers []string   `mapstructure:"brokers"`
	SASL    SASLConfig `mapstructure:"sasl"`
	TLS     TLSConfig  `mapstructure:"tls"`
}

// SASLConfig contains SASL authentication settings.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"` // PLAIN | SCRAM-SHA-256 | SCRAM-SHA-512
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// TLSConfig contains TLS settings.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACert             string `mapstructure:"ca_cert"`
	ClientCert         string `mapstructure:"client_cert"`
	ClientKey          string `mapstructure:"client_key"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ─── Command Channel ───

// CommandChannelConfig configures the remote command channel.
type CommandChannelConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	Type       string             `mapstructure:"type"` // "kafka"
	Kafka      CommandKafkaConfig `mapstructure:"kafka"`
	CommandTTL string             `mapstructure:"command_ttl"` // Default "5m"
}

// CommandKafkaConfig contains Kafka-specific command channel settings.
type CommandKafkaConfig struct {
	Brokers         []string   `mapstructure:"brokers"`
	Topic           string     `mapstructure:"topic"`
	GroupID         string     `mapstructure:"group_id"`
	AutoOffsetReset string     `mapstructure:"auto_offset_reset"`
	SASL            SASLConfig `mapstructure:"sasl"`
	TLS             TLSConfig  `mapstructure:"tls"`
}

// ─── Switch Events ───

// EventsConfig configures where switch events (packet-in, switch connected)
// are read from. The UDS control socket always accepts them as well.
type EventsConfig struct {
	Kafka EventsKafkaConfig `mapstructure:"kafka"`
}

// EventsKafkaConfig configures the Kafka events topic consumer.
type EventsKafkaConfig struct {
	Enabled         bool       `mapstructure:"enabled"`
	Brokers         []string   `mapstructure:"brokers"`
	Topic           string     `mapstructure:"topic"`
	GroupID         string     `mapstructure:"group_id"`
	AutoOffsetReset string     `mapstructure:"auto_offset_reset"`
	SASL            SASLConfig `mapstructure:"sasl"`
	TLS             TLSConfig  `mapstructure:"tls"`
}

// ─── Dispatch ───

// DispatchConfig selects where install-rule and emit commands go.
type DispatchConfig struct {
	Sinks []string            `mapstructure:"sinks"` // log | kafka
	Kafka DispatchKafkaConfig `mapstructure:"kafka"`
}

// DispatchKafkaConfig configures the Kafka commands topic producer.
type DispatchKafkaConfig struct {
	Brokers      []string   `mapstructure:"brokers"`
	Topic        string     `mapstructure:"topic"`
	Compression  string     `mapstructure:"compression"` // none | gzip | snappy | lz4 | zstd
	BatchTimeout string     `mapstructure:"batch_timeout"`
	Async        bool       `mapstructure:"async"`
	SASL         SASLConfig `mapstructure:"sasl"`
	TLS          TLSConfig  `mapstructure:"tls"`
}

// ─── Engine ───

// EngineConfig sizes the per-switch event bus.
type EngineConfig struct {
	Partitions int `mapstructure:"partitions"` // 0 = GOMAXPROCS
	QueueSize  int `mapstructure:"queue_size"`
}

// ─── Topology ───

// TopologyConfig holds the static VLAN membership, either inline or in a
// separate YAML file. Inline and file definitions are concatenated.
type TopologyConfig struct {
	File  string             `mapstructure:"file"`
	VLANs []topology.VLANDef `mapstructure:"vlans"`
}

// ─── Bindings ───

// BindingsConfig selects the administrative binding store.
type BindingsConfig struct {
	Store string `mapstructure:"store"` // memory | sqlite
	Path  string `mapstructure:"path"`  // sqlite database file
}

// ─── REST API ───

// APIConfig configures the northbound REST API.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Pattern string           `mapstructure:"pattern"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
	Loki LokiOutputConfig `mapstructure:"loki"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// LokiOutputConfig configures Loki log output.
type LokiOutputConfig struct {
	Enabled      bool              `mapstructure:"enabled"`
	Endpoint     string            `mapstructure:"endpoint"`
	Labels       map[string]string `mapstructure:"labels"`
	BatchSize    int               `mapstructure:"batch_size"`
	BatchTimeout string            `mapstructure:"batch_timeout"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `vlanswitch: ...`.
type configRoot struct {
	VLANSwitch GlobalConfig `mapstructure:"vlanswitch"`
}

// Load loads configuration from file.
// The YAML file uses `vlanswitch:` as root key; env vars use the VLANSWITCH_
// prefix (e.g., VLANSWITCH_LOG_LEVEL). A .env file in the working directory
// is loaded first so it can feed those variables.
func Load(path string) (*GlobalConfig, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The `vlanswitch.` key prefix maps to `VLANSWITCH_` via the key replacer
	// (key "vlanswitch.log.level" -> env "VLANSWITCH_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.VLANSwitch

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads environment variables from the given files. Missing files
// are ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults sets default values for configuration.
// All keys use the "vlanswitch." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Control defaults
	v.SetDefault("vlanswitch.control.pid_file", "/var/run/vlanswitch.pid")
	v.SetDefault("vlanswitch.control.socket", "/var/run/vlanswitch.sock")

	// Log defaults
	v.SetDefault("vlanswitch.log.level", "info")
	v.SetDefault("vlanswitch.log.format", "json")
	v.SetDefault("vlanswitch.log.pattern", "%time [%level] %msg %field\n")
	v.SetDefault("vlanswitch.log.outputs.file.enabled", false)
	v.SetDefault("vlanswitch.log.outputs.file.path", "/var/log/vlanswitch/vlanswitch.log")
	v.SetDefault("vlanswitch.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("vlanswitch.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("vlanswitch.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("vlanswitch.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("vlanswitch.metrics.enabled", true)
	v.SetDefault("vlanswitch.metrics.listen", ":9091")
	v.SetDefault("vlanswitch.metrics.path", "/metrics")

	// API defaults
	v.SetDefault("vlanswitch.api.enabled", false)
	v.SetDefault("vlanswitch.api.listen", ":8080")

	// Command channel defaults
	v.SetDefault("vlanswitch.command_channel.enabled", false)
	v.SetDefault("vlanswitch.command_channel.type", "kafka")
	v.SetDefault("vlanswitch.command_channel.kafka.auto_offset_reset", "latest")
	v.SetDefault("vlanswitch.command_channel.command_ttl", "5m")

	// Events defaults
	v.SetDefault("vlanswitch.events.kafka.enabled", false)
	v.SetDefault("vlanswitch.events.kafka.topic", "vlanswitch-events")
	v.SetDefault("vlanswitch.events.kafka.auto_offset_reset", "latest")

	// Dispatch defaults
	v.SetDefault("vlanswitch.dispatch.sinks", []string{"log"})
	v.SetDefault("vlanswitch.dispatch.kafka.topic", "vlanswitch-commands")
	v.SetDefault("vlanswitch.dispatch.kafka.compression", "snappy")
	v.SetDefault("vlanswitch.dispatch.kafka.batch_timeout", "10ms")
	v.SetDefault("vlanswitch.dispatch.kafka.async", true)

	// Engine defaults
	v.SetDefault("vlanswitch.engine.partitions", 0)
	v.SetDefault("vlanswitch.engine.queue_size", 4096)

	// Bindings defaults
	v.SetDefault("vlanswitch.data_dir", "/var/lib/vlanswitch")
	v.SetDefault("vlanswitch.bindings.store", "memory")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	// ── Node hostname auto-detect ──
	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	// ── Kafka inheritance ──
	applyKafkaInheritance(cfg)

	// ── Command channel validation ──
	if cfg.CommandChannel.Enabled {
		if cfg.CommandChannel.Type != "kafka" {
			return fmt.Errorf("%w: unsupported command_channel.type: %s (only 'kafka' supported)", core.ErrConfigInvalid, cfg.CommandChannel.Type)
		}
		if len(cfg.CommandChannel.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: command_channel.kafka.brokers is required when command_channel.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.CommandChannel.Kafka.Topic == "" {
			return fmt.Errorf("%w: command_channel.kafka.topic is required when command_channel.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.CommandChannel.Kafka.GroupID == "" {
			cfg.CommandChannel.Kafka.GroupID = "vlanswitch-" + cfg.Node.Hostname
		}
		if _, err := time.ParseDuration(cfg.CommandChannel.CommandTTL); err != nil {
			return fmt.Errorf("%w: command_channel.command_ttl: %v", core.ErrConfigInvalid, err)
		}
	}

	// ── Events validation ──
	if cfg.Events.Kafka.Enabled {
		if len(cfg.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: events.kafka.brokers is required when events.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Events.Kafka.Topic == "" {
			return fmt.Errorf("%w: events.kafka.topic is required when events.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Events.Kafka.GroupID == "" {
			// one group for the whole fleet: each event is handled once
			cfg.Events.Kafka.GroupID = "vlanswitch-events"
		}
	}

	// ── Dispatch validation ──
	if len(cfg.Dispatch.Sinks) == 0 {
		cfg.Dispatch.Sinks = []string{"log"}
	}
	for _, sink := range cfg.Dispatch.Sinks {
		switch sink {
		case "log":
		case "kafka":
			if len(cfg.Dispatch.Kafka.Brokers) == 0 {
				return fmt.Errorf("%w: dispatch.kafka.brokers is required for the kafka sink", core.ErrConfigInvalid)
			}
			if cfg.Dispatch.Kafka.Topic == "" {
				return fmt.Errorf("%w: dispatch.kafka.topic is required for the kafka sink", core.ErrConfigInvalid)
			}
		default:
			return fmt.Errorf("%w: unknown dispatch sink %q (must be log/kafka)", core.ErrConfigInvalid, sink)
		}
	}

	// ── Engine ──
	if cfg.Engine.Partitions < 0 {
		return fmt.Errorf("%w: engine.partitions must be >= 0", core.ErrConfigInvalid)
	}
	if cfg.Engine.QueueSize <= 0 {
		cfg.Engine.QueueSize = 4096
	}

	// ── Bindings ──
	switch cfg.Bindings.Store {
	case "", "memory":
		cfg.Bindings.Store = "memory"
	case "sqlite":
		if cfg.Bindings.Path == "" {
			cfg.Bindings.Path = strings.TrimRight(cfg.DataDir, "/") + "/bindings.db"
		}
	default:
		return fmt.Errorf("%w: unknown bindings.store %q (must be memory/sqlite)", core.ErrConfigInvalid, cfg.Bindings.Store)
	}

	return nil
}

// applyKafkaInheritance copies the global vlanswitch.kafka connection fields
// into every Kafka client section whose own fields are empty/zero.
func applyKafkaInheritance(cfg *GlobalConfig) {
	global := &cfg.Kafka

	inherit := func(brokers *[]string, sasl *SASLConfig, tls *TLSConfig) {
		if len(*brokers) == 0 {
			*brokers = global.Brokers
		}
		if !sasl.Enabled && global.SASL.Enabled {
			*sasl = global.SASL
		}
		if !tls.Enabled && global.TLS.Enabled {
			*tls = global.TLS
		}
	}

	cc := &cfg.CommandChannel.Kafka
	inherit(&cc.Brokers, &cc.SASL, &cc.TLS)

	ev := &cfg.Events.Kafka
	inherit(&ev.Brokers, &ev.SASL, &ev.TLS)

	dk := &cfg.Dispatch.Kafka
	inherit(&dk.Brokers, &dk.SASL, &dk.TLS)
}

// VLANDefs returns the inline topology followed by the definitions of the
// topology file, if any.
func (cfg *GlobalConfig) VLANDefs() ([]topology.VLANDef, error) {
	defs := append([]topology.VLANDef(nil), cfg.Topology.VLANs...)
	if cfg.Topology.File == "" {
		return defs, nil
	}
	fromFile, err := LoadTopologyFile(cfg.Topology.File)
	if err != nil {
		return nil, err
	}
	return append(defs, fromFile...), nil
}
