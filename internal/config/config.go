package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vango-dev/vrender/internal/errors"
	"github.com/vango-dev/vrender/pkg/protocol"
	"github.com/vango-dev/vrender/pkg/renderer"
	"github.com/vango-dev/vrender/pkg/schema"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vrender.toml"

	// DefaultQueueSize is the default outbound event queue capacity.
	DefaultQueueSize = 1024

	// DefaultDebugListen is the default debug server address.
	DefaultDebugListen = "127.0.0.1:7070"

	// DefaultDialTimeout bounds the websocket handshake.
	DefaultDialTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single websocket write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultPingInterval is how often the session pings the engine.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongTimeout is how long the session waits for any read after
	// a ping before giving up.
	DefaultPongTimeout = 60 * time.Second
)

// Config is the complete vrender.toml configuration.
type Config struct {
	Renderer  RendererConfig
	Events    EventsConfig
	Transport TransportConfig
	Debug     DebugConfig
	Source    SourceConfig

	// path stores the file the config was loaded from.
	path string
}

// RendererConfig configures the renderer instance.
type RendererConfig struct {
	// RootID is the node id the mount is registered under.
	RootID protocol.NodeID

	// MountID is the id attribute of the mount element. Empty mounts on
	// the document body.
	MountID string

	// MaxNodeID bounds the ids the engine may use. Zero is unbounded.
	MaxNodeID protocol.NodeID

	// QueueSize is the outbound event queue capacity.
	QueueSize int

	// InputDebounce coalesces input events per node. Zero disables it.
	InputDebounce time.Duration
}

// EventsConfig configures event delegation.
type EventsConfig struct {
	// Propagate lists categories delivered to every registered ancestor,
	// in addition to the built-in propagating set.
	Propagate []string
}

// TransportConfig configures the live engine session.
type TransportConfig struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration

	// Compress gzips outbound event frames above the compression threshold.
	Compress bool
}

// DebugConfig configures the debug HTTP server.
type DebugConfig struct {
	// Listen is the server address. Empty disables the server.
	Listen string
}

// SourceConfig configures recorded stream sources.
type SourceConfig struct {
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// fileConfig is the on-disk key mapping.
type fileConfig struct {
	Renderer struct {
		RootID        uint64 `toml:"root_id"`
		MountID       string `toml:"mount_id"`
		MaxNodeID     uint64 `toml:"max_node_id"`
		QueueSize     int    `toml:"queue_size"`
		InputDebounce string `toml:"input_debounce"`
	} `toml:"renderer"`
	Events struct {
		Propagate []string `toml:"propagate"`
	} `toml:"events"`
	Transport struct {
		URL          string `toml:"url"`
		DialTimeout  string `toml:"dial_timeout"`
		WriteTimeout string `toml:"write_timeout"`
		PingInterval string `toml:"ping_interval"`
		PongTimeout  string `toml:"pong_timeout"`
		Compress     bool   `toml:"compress"`
	} `toml:"transport"`
	Debug struct {
		Listen string `toml:"listen"`
	} `toml:"debug"`
	Source struct {
		S3Region    string `toml:"s3_region"`
		S3Endpoint  string `toml:"s3_endpoint"`
		S3PathStyle bool   `toml:"s3_path_style"`
	} `toml:"source"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			QueueSize: DefaultQueueSize,
		},
		Transport: TransportConfig{
			DialTimeout:  DefaultDialTimeout,
			WriteTimeout: DefaultWriteTimeout,
			PingInterval: DefaultPingInterval,
			PongTimeout:  DefaultPongTimeout,
			Compress:     true,
		},
		Debug: DebugConfig{
			Listen: DefaultDebugListen,
		},
	}
}

// Load reads vrender.toml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads the configuration at path and overlays the keys it
// defines on Default. The result is validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R031").
				WithDetail("No configuration file at " + path).
				WithSuggestion("Create " + ConfigFileName + " or omit --config to use defaults").
				Wrap(err)
		}
		return nil, errors.New("R031").Wrap(err)
	}

	cfg, err := Parse(string(data))
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse decodes TOML text into a validated configuration.
func Parse(text string) (*Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return nil, errors.New("R031").
			WithDetail("Failed to parse configuration: " + err.Error()).
			WithSuggestion("Check that the file is valid TOML")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New("R030").
			WithDetail("Unknown key " + undecoded[0].String())
	}

	cfg := Default()
	r := &raw.Renderer
	if meta.IsDefined("renderer", "root_id") {
		cfg.Renderer.RootID = protocol.NodeID(r.RootID)
	}
	if meta.IsDefined("renderer", "mount_id") {
		cfg.Renderer.MountID = strings.TrimSpace(r.MountID)
	}
	if meta.IsDefined("renderer", "max_node_id") {
		cfg.Renderer.MaxNodeID = protocol.NodeID(r.MaxNodeID)
	}
	if meta.IsDefined("renderer", "queue_size") {
		cfg.Renderer.QueueSize = r.QueueSize
	}
	if meta.IsDefined("renderer", "input_debounce") {
		if cfg.Renderer.InputDebounce, err = duration("renderer.input_debounce", r.InputDebounce); err != nil {
			return nil, err
		}
	}

	if meta.IsDefined("events", "propagate") {
		cfg.Events.Propagate = trimAll(raw.Events.Propagate)
	}

	tr := &raw.Transport
	if meta.IsDefined("transport", "url") {
		cfg.Transport.URL = strings.TrimSpace(tr.URL)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"dial_timeout", tr.DialTimeout, &cfg.Transport.DialTimeout},
		{"write_timeout", tr.WriteTimeout, &cfg.Transport.WriteTimeout},
		{"ping_interval", tr.PingInterval, &cfg.Transport.PingInterval},
		{"pong_timeout", tr.PongTimeout, &cfg.Transport.PongTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined("transport", d.key) {
			continue
		}
		if *d.dst, err = duration("transport."+d.key, d.raw); err != nil {
			return nil, err
		}
	}
	if meta.IsDefined("transport", "compress") {
		cfg.Transport.Compress = tr.Compress
	}

	if meta.IsDefined("debug", "listen") {
		cfg.Debug.Listen = strings.TrimSpace(raw.Debug.Listen)
	}

	if meta.IsDefined("source", "s3_region") {
		cfg.Source.S3Region = strings.TrimSpace(raw.Source.S3Region)
	}
	if meta.IsDefined("source", "s3_endpoint") {
		cfg.Source.S3Endpoint = strings.TrimSpace(raw.Source.S3Endpoint)
	}
	if meta.IsDefined("source", "s3_path_style") {
		cfg.Source.S3PathStyle = raw.Source.S3PathStyle
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("R030").
			WithDetail(key + " is not a duration: " + strconv.Quote(s)).
			WithSuggestion("Use Go duration syntax such as \"250ms\" or \"30s\"")
	}
	return d, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Renderer.QueueSize <= 0 {
		return errors.New("R030").
			WithDetail("renderer.queue_size must be positive")
	}
	if c.Renderer.InputDebounce < 0 {
		return errors.New("R030").
			WithDetail("renderer.input_debounce must not be negative")
	}
	if c.Renderer.MaxNodeID != 0 && c.Renderer.RootID > c.Renderer.MaxNodeID {
		return errors.New("R030").
			WithDetail("renderer.root_id exceeds renderer.max_node_id")
	}
	for name, d := range map[string]time.Duration{
		"dial_timeout":  c.Transport.DialTimeout,
		"write_timeout": c.Transport.WriteTimeout,
		"ping_interval": c.Transport.PingInterval,
		"pong_timeout":  c.Transport.PongTimeout,
	} {
		if d <= 0 {
			return errors.New("R030").
				WithDetail("transport." + name + " must be positive")
		}
	}
	if c.Transport.PongTimeout <= c.Transport.PingInterval {
		return errors.New("R030").
			WithDetail("transport.pong_timeout must exceed transport.ping_interval")
	}
	if u := c.Transport.URL; u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		return errors.New("R030").
			WithDetail("transport.url must use ws:// or wss://, got " + strconv.Quote(u))
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Schema returns the event table with the configured propagation.
func (c *Config) Schema() *schema.Table {
	return schema.Default().WithPropagation(c.Events.Propagate...)
}

// RendererOptions maps the renderer section to renderer options.
func (c *Config) RendererOptions() []renderer.Option {
	opts := []renderer.Option{
		renderer.WithRootID(c.Renderer.RootID),
		renderer.WithQueueSize(c.Renderer.QueueSize),
		renderer.WithSchema(c.Schema()),
	}
	if c.Renderer.MountID != "" {
		opts = append(opts, renderer.WithMountID(c.Renderer.MountID))
	}
	if c.Renderer.MaxNodeID != 0 {
		opts = append(opts, renderer.WithMaxNodeID(c.Renderer.MaxNodeID))
	}
	if c.Renderer.InputDebounce > 0 {
		opts = append(opts, renderer.WithInputDebounce(c.Renderer.InputDebounce))
	}
	return opts
}
