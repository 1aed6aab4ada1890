package radiolink

import (
	"os"
	"path/filepath"
	"time"

	"github.com/openfpv/radiolink/internal/protocol"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("has valid defaults", func() {
		conf := DefaultConfig()
		Expect(conf.Validate()).To(Succeed())
		s, ok := conf.Stream(protocol.StreamIDVideo)
		Expect(ok).To(BeTrue())
		Expect(s.FECScheme).To(Equal("reed-solomon"))
		_, ok = conf.Stream(protocol.StreamIDAudio)
		Expect(ok).To(BeFalse())
	})

	It("uses the defaults for an empty document", func() {
		conf, err := NewConfigFromYAML(nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(conf.Interfaces).To(Equal(DefaultConfig().Interfaces))
		Expect(conf.Stats.RefreshInterval).To(Equal(protocol.DefaultStatsRefreshInterval))
	})

	It("decodes interfaces, streams and durations", func() {
		conf, err := NewConfigFromYAML([]byte(`
log_level: debug
interfaces:
  - name: wlan0
    link: 0
  - name: wlan1
    link: 1
streams:
  - id: 3
    fec_scheme: reed-solomon
    max_blocks: 20
    data_packets: 8
    ec_packets: 4
    packet_length: 1024
    enable_crc: true
    max_block_wait: 20ms
  - id: 1
    fec_scheme: xor
stats:
  refresh_interval: 500ms
  graph_refresh_interval: 200ms
metrics:
  enabled: true
  listen: 127.0.0.1:9200
`))
		Expect(err).ToNot(HaveOccurred())
		wait := 20 * time.Millisecond
		Expect(conf.LogLevel).To(Equal("debug"))
		Expect(conf.Interfaces).To(HaveLen(2))
		Expect(conf.Interfaces[1]).To(Equal(InterfaceConfig{Name: "wlan1", Link: 1}))
		Expect(conf.Streams).To(HaveLen(2))
		Expect(conf.Streams[0]).To(Equal(StreamConfig{
			ID:           protocol.StreamIDVideo,
			FECScheme:    "reed-solomon",
			MaxBlocks:    20,
			DataPackets:  8,
			ECPackets:    4,
			PacketLength: 1024,
			EnableCRC:    true,
			MaxBlockWait: &wait,
		}))
		commands := conf.Streams[1]
		Expect(commands.ECPackets).To(Equal(1))
		Expect(commands.MaxBlocks).To(Equal(defaultMaxBlocks))
		Expect(commands.BlockWait()).To(Equal(protocol.DefaultMaxBlockWait))
		Expect(conf.Stats.RefreshInterval).To(Equal(500 * time.Millisecond))
		Expect(conf.Stats.GraphRefreshInterval).To(Equal(200 * time.Millisecond))
		Expect(conf.Metrics.Listen).To(Equal("127.0.0.1:9200"))
		Expect(conf.Metrics.Path).To(Equal("/metrics"))
	})

	It("keeps an explicit zero max_block_wait", func() {
		conf, err := NewConfigFromYAML([]byte(`
streams:
  - id: 3
    max_block_wait: 0s
`))
		Expect(err).ToNot(HaveOccurred())
		Expect(conf.Streams[0].MaxBlockWait).ToNot(BeNil())
		Expect(conf.Streams[0].BlockWait()).To(BeZero())
		body, err := conf.Marshal()
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("max_block_wait: 0s"))
		decoded, err := NewConfigFromYAML(body)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Streams[0].BlockWait()).To(BeZero())
	})

	It("rejects unknown keys", func() {
		_, err := NewConfigFromYAML([]byte("streamz: []\n"))
		Expect(err).To(MatchError(ContainSubstring("could not parse config")))
	})

	It("round trips through Marshal", func() {
		conf := DefaultConfig()
		body, err := conf.Marshal()
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("refresh_interval: 350ms"))
		decoded, err := NewConfigFromYAML(body)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(Equal(conf))
	})

	It("loads a file", func() {
		dir, err := os.MkdirTemp("", "rxlink")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "rxlink.yaml")
		Expect(os.WriteFile(path, []byte("log_level: error\n"), 0o644)).To(Succeed())
		conf, err := LoadConfig(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(conf.LogLevel).To(Equal("error"))
		_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("reading config")))
	})

	Context("validation", func() {
		var conf *Config

		BeforeEach(func() {
			conf = DefaultConfig()
		})

		It("rejects an invalid log level", func() {
			conf.LogLevel = "loud"
			Expect(conf.Validate()).To(MatchError(ContainSubstring("log_level")))
		})

		It("needs at least one interface", func() {
			conf.Interfaces = nil
			Expect(conf.Validate()).To(MatchError(ContainSubstring("interfaces")))
		})

		It("rejects too many interfaces", func() {
			conf.Interfaces = make([]InterfaceConfig, protocol.MaxRadioInterfaces+1)
			Expect(conf.Validate()).To(MatchError(ContainSubstring("interfaces")))
		})

		It("rejects an invalid link", func() {
			conf.Interfaces[0].Link = protocol.MaxRadioLinks
			Expect(conf.Validate()).To(MatchError(ContainSubstring("invalid link")))
		})

		It("accepts an unassigned interface", func() {
			conf.Interfaces[0].Link = -1
			Expect(conf.Validate()).To(Succeed())
		})

		It("rejects duplicate streams", func() {
			conf.Streams = append(conf.Streams, conf.Streams[0])
			Expect(conf.Validate()).To(MatchError(ContainSubstring("duplicate stream")))
		})

		It("rejects invalid stream IDs", func() {
			conf.Streams[0].ID = protocol.MaxRadioStreams
			Expect(conf.Validate()).To(MatchError(ContainSubstring("invalid stream id")))
		})

		It("rejects unknown schemes", func() {
			conf.Streams[0].FECScheme = "ldpc"
			Expect(conf.Validate()).To(MatchError(ContainSubstring("unknown fec_scheme")))
		})

		It("rejects XOR streams with more than one EC packet", func() {
			conf.Streams[0].FECScheme = "xor"
			conf.Streams[0].ECPackets = 2
			Expect(conf.Validate()).To(MatchError(ContainSubstring("exactly 1 EC packet")))
		})

		It("rejects geometries beyond the protocol limits", func() {
			conf.Streams[0].DataPackets = protocol.MaxDataPacketsInBlock + 1
			Expect(conf.Validate()).To(MatchError(ContainSubstring("data_packets")))
			conf.Streams[0].DataPackets = 4
			conf.Streams[0].MaxBlocks = protocol.MaxBlocksInWindow + 1
			Expect(conf.Validate()).To(MatchError(ContainSubstring("max_blocks")))
			conf.Streams[0].MaxBlocks = 8
			conf.Streams[0].PacketLength = protocol.MaxPacketPayload + 1
			Expect(conf.Validate()).To(MatchError(ContainSubstring("packet_length")))
		})

		It("rejects windows that do not fit in the packet pool", func() {
			conf.Streams[0] = StreamConfig{
				ID:           protocol.StreamIDVideo,
				FECScheme:    "reed-solomon",
				MaxBlocks:    protocol.MaxBlocksInWindow,
				DataPackets:  protocol.MaxDataPacketsInBlock,
				ECPackets:    protocol.MaxECPacketsInBlock,
				PacketLength: protocol.MaxPacketPayload,
			}
			conf.Streams = conf.Streams[:1]
			Expect(conf.Validate()).To(MatchError(ContainSubstring("exceeds the")))
			conf.Streams[0].MaxBlocks = protocol.MaxArenaSize / ((protocol.MaxDataPacketsInBlock + protocol.MaxECPacketsInBlock) * protocol.MaxPacketPayload)
			Expect(conf.Validate()).To(Succeed())
		})

		It("rejects a negative max_block_wait", func() {
			wait := -time.Millisecond
			conf.Streams[0].MaxBlockWait = &wait
			Expect(conf.Validate()).To(MatchError(ContainSubstring("max_block_wait")))
		})

		It("needs room for the CRC header", func() {
			conf.Streams[0].EnableCRC = true
			conf.Streams[0].PacketLength = 4
			Expect(conf.Validate()).To(MatchError(ContainSubstring("packet_length")))
		})

		It("does not check the geometry of unprotected streams", func() {
			conf.Streams[0].FECScheme = "none"
			conf.Streams[0].DataPackets = 0
			Expect(conf.Validate()).To(Succeed())
		})

		It("checks the metrics endpoint when enabled", func() {
			conf.Metrics.Enabled = true
			conf.Metrics.Path = "metrics"
			Expect(conf.Validate()).To(MatchError(ContainSubstring("metrics")))
		})
	})
})
