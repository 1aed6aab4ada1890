package radiolink

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/metrics"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config configures a Receiver
type Config struct {
	LogLevel   string            `yaml:"log_level,omitempty"`
	Interfaces []InterfaceConfig `yaml:"interfaces,omitempty"`
	Streams    []StreamConfig    `yaml:"streams,omitempty"`
	Stats      StatsConfig       `yaml:"stats,omitempty"`
	Metrics    MetricsConfig     `yaml:"metrics,omitempty"`
}

type InterfaceConfig struct {
	Name string `yaml:"name,omitempty"`
	// Link is the radio link the interface belongs to, -1 for none
	Link int `yaml:"link"`
}

// StreamConfig is the block geometry of a stream. Zero values take the defaults.
type StreamConfig struct {
	ID           protocol.StreamID `yaml:"id"`
	FECScheme    string            `yaml:"fec_scheme,omitempty"`
	MaxBlocks    int               `yaml:"max_blocks,omitempty"`
	DataPackets  int               `yaml:"data_packets,omitempty"`
	ECPackets    int               `yaml:"ec_packets,omitempty"`
	PacketLength int               `yaml:"packet_length,omitempty"`
	EnableCRC    bool              `yaml:"enable_crc,omitempty"`
	// MaxBlockWait bounds how long a missing packet may stall the stream.
	// Unset takes the default, 0 skips gaps right away.
	MaxBlockWait *time.Duration `yaml:"max_block_wait,omitempty"`
}

// BlockWait is the configured MaxBlockWait, or the default if unset
func (s *StreamConfig) BlockWait() time.Duration {
	if s.MaxBlockWait == nil {
		return protocol.DefaultMaxBlockWait
	}
	return *s.MaxBlockWait
}

type StatsConfig struct {
	RefreshInterval         time.Duration `yaml:"refresh_interval,omitempty"`
	GraphRefreshInterval    time.Duration `yaml:"graph_refresh_interval,omitempty"`
	ControllerSliceInterval time.Duration `yaml:"controller_slice_interval,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

const (
	defaultMaxBlocks   = 8
	defaultDataPackets = 4
	defaultECPackets   = 2
)

// DefaultConfig is one interface on link 0 carrying the usual FPV streams
func DefaultConfig() *Config {
	conf := &Config{
		LogLevel: "info",
		Interfaces: []InterfaceConfig{
			{Name: "wlan0", Link: 0},
		},
		Streams: []StreamConfig{
			{ID: protocol.StreamIDTelemetry, FECScheme: "reed-solomon", MaxBlocks: 8, DataPackets: 4, ECPackets: 2, PacketLength: protocol.MaxPacketPayload, EnableCRC: true},
			{ID: protocol.StreamIDCommands, FECScheme: "xor", MaxBlocks: 4, DataPackets: 2, ECPackets: 1, PacketLength: 256, EnableCRC: true},
			{ID: protocol.StreamIDVideo, FECScheme: "reed-solomon", MaxBlocks: 100, DataPackets: 8, ECPackets: 4, PacketLength: protocol.MaxPacketPayload},
		},
		Stats: StatsConfig{
			RefreshInterval:         protocol.DefaultStatsRefreshInterval,
			GraphRefreshInterval:    protocol.DefaultGraphRefreshInterval,
			ControllerSliceInterval: 80 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Listen: metrics.ListenDefault,
			Path:   metrics.PathDefault,
		},
	}
	conf.populate()
	return conf
}

// LoadConfig reads a YAML config file
func LoadConfig(path string) (*Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return NewConfigFromYAML(body)
}

// NewConfigFromYAML decodes body over the defaults and validates the result.
// Unknown keys are rejected.
func NewConfigFromYAML(body []byte) (*Config, error) {
	conf := DefaultConfig()
	if len(bytes.TrimSpace(body)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(body))
		decoder.KnownFields(true)
		if err := decoder.Decode(conf); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "could not parse config")
		}
	}
	conf.populate()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Marshal encodes the config as YAML
func (c *Config) Marshal() ([]byte, error) {
	var b bytes.Buffer
	encoder := yaml.NewEncoder(&b)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(err, "encoding config")
	}
	return b.Bytes(), nil
}

func (c *Config) populate() {
	for i := range c.Streams {
		c.Streams[i].populate()
	}
	if c.Stats.RefreshInterval == 0 {
		c.Stats.RefreshInterval = protocol.DefaultStatsRefreshInterval
	}
	if c.Stats.GraphRefreshInterval == 0 {
		c.Stats.GraphRefreshInterval = protocol.DefaultGraphRefreshInterval
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = metrics.ListenDefault
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = metrics.PathDefault
	}
}

func (s *StreamConfig) populate() {
	if s.FECScheme == "" {
		s.FECScheme = "reed-solomon"
	}
	if s.MaxBlocks == 0 {
		s.MaxBlocks = defaultMaxBlocks
	}
	if s.DataPackets == 0 {
		s.DataPackets = defaultDataPackets
	}
	if s.ECPackets == 0 {
		s.ECPackets = defaultECPackets
		if s.FECScheme == "xor" {
			s.ECPackets = 1
		}
	}
	if s.PacketLength == 0 {
		s.PacketLength = protocol.MaxPacketPayload
	}
	if s.MaxBlockWait == nil {
		wait := protocol.DefaultMaxBlockWait
		s.MaxBlockWait = &wait
	}
}

// Validate checks the config against the protocol limits
func (c *Config) Validate() error {
	if _, err := utils.ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if len(c.Interfaces) == 0 || len(c.Interfaces) > protocol.MaxRadioInterfaces {
		return errors.Errorf("interfaces: need between 1 and %d interfaces, got %d", protocol.MaxRadioInterfaces, len(c.Interfaces))
	}
	for i, iface := range c.Interfaces {
		if iface.Link < -1 || iface.Link >= protocol.MaxRadioLinks {
			return errors.Errorf("interfaces[%d]: invalid link %d", i, iface.Link)
		}
	}
	seen := make(map[protocol.StreamID]struct{}, len(c.Streams))
	for i := range c.Streams {
		s := &c.Streams[i]
		if _, ok := seen[s.ID]; ok {
			return errors.Errorf("streams[%d]: duplicate stream %d", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		if err := s.validate(); err != nil {
			return errors.Wrapf(err, "streams[%d]", i)
		}
	}
	if c.Stats.RefreshInterval < 0 || c.Stats.GraphRefreshInterval < 0 || c.Stats.ControllerSliceInterval < 0 {
		return errors.New("stats: intervals must not be negative")
	}
	if c.Metrics.Enabled {
		if !metrics.ValidateListenAddress(c.Metrics.Listen) {
			return errors.Errorf("metrics: invalid listen address %q", c.Metrics.Listen)
		}
		if !metrics.ValidateMetricsPath(c.Metrics.Path) {
			return errors.Errorf("metrics: invalid path %q", c.Metrics.Path)
		}
	}
	return nil
}

func (s *StreamConfig) validate() error {
	if int(s.ID) >= protocol.MaxRadioStreams {
		return errors.Errorf("invalid stream id %d", s.ID)
	}
	scheme, ok := protocol.ParseFECSchemeName(s.FECScheme)
	if !ok {
		return errors.Errorf("unknown fec_scheme %q", s.FECScheme)
	}
	if scheme == protocol.FECDisabled {
		return nil
	}
	if s.MaxBlocks < 1 || s.MaxBlocks > protocol.MaxBlocksInWindow {
		return errors.Errorf("max_blocks must be between 1 and %d", protocol.MaxBlocksInWindow)
	}
	if s.DataPackets < 1 || s.DataPackets > protocol.MaxDataPacketsInBlock {
		return errors.Errorf("data_packets must be between 1 and %d", protocol.MaxDataPacketsInBlock)
	}
	if s.ECPackets < 1 || s.ECPackets > protocol.MaxECPacketsInBlock {
		return errors.Errorf("ec_packets must be between 1 and %d", protocol.MaxECPacketsInBlock)
	}
	if scheme == protocol.XORFECScheme && s.ECPackets != 1 {
		return errors.Errorf("the xor scheme needs exactly 1 EC packet per block, got %d", s.ECPackets)
	}
	minLength := 1
	if s.EnableCRC {
		minLength += crypto.NewCRC32Checksum().Overhead()
	}
	if s.PacketLength < minLength || s.PacketLength > protocol.MaxPacketPayload {
		return errors.Errorf("packet_length must be between %d and %d", minLength, protocol.MaxPacketPayload)
	}
	if arena := s.MaxBlocks * (s.DataPackets + s.ECPackets) * s.PacketLength; arena > protocol.MaxArenaSize {
		return errors.Errorf("max_blocks*(data_packets+ec_packets)*packet_length = %d exceeds the %d bytes a stream may buffer", arena, protocol.MaxArenaSize)
	}
	if s.MaxBlockWait != nil && *s.MaxBlockWait < 0 {
		return errors.New("max_block_wait must not be negative")
	}
	return nil
}

// Stream returns the config of a stream
func (c *Config) Stream(id protocol.StreamID) (*StreamConfig, bool) {
	for i := range c.Streams {
		if c.Streams[i].ID == id {
			return &c.Streams[i], true
		}
	}
	return nil, false
}
