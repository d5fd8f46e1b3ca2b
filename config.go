package telemon

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/soda-auto/telemon/ncom"
	"github.com/soda-auto/telemon/receiver"
)

const (
	DefaultPort            = 8000
	DefaultHistoryCapacity = 300
	DefaultTrackCapacity   = 10000
	DefaultRefresh         = 33 * time.Millisecond
	DefaultSerialBaud      = 115200
)

// Duration decodes TOML strings such as "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", string(text))
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ReceiverConfig struct {
	Address        string   `toml:"address"`
	Port           int      `toml:"port"`
	MulticastGroup string   `toml:"multicast_group"`
	Interface      string   `toml:"interface"`
	ReadTimeout    Duration `toml:"read_timeout"`
	ReadBuffer     int      `toml:"read_buffer"`

	// alternative sources, at most one of them may be set
	PCAPFile     string `toml:"pcap_file"`
	PCAPRealtime bool   `toml:"pcap_realtime"`
	SerialPort   string `toml:"serial_port"`
	SerialBaud   int    `toml:"serial_baud"`
}

func (c ReceiverConfig) UDP() receiver.Config {
	return receiver.Config{
		Address:        c.Address,
		Port:           c.Port,
		MulticastGroup: c.MulticastGroup,
		Interface:      c.Interface,
		ReadTimeout:    c.ReadTimeout.Duration,
		ReadBuffer:     c.ReadBuffer,
	}
}

type DecoderConfig struct {
	StrictSync      bool `toml:"strict_sync"`
	VerifyChecksums bool `toml:"verify_checksums"`
}

func (c DecoderConfig) Decoder() ncom.Decoder {
	return ncom.Decoder{
		StrictSync:      c.StrictSync,
		VerifyChecksums: c.VerifyChecksums,
	}
}

type HistoryConfig struct {
	Capacity      int `toml:"capacity"`
	TrackCapacity int `toml:"track_capacity"`
}

type MonitorConfig struct {
	// Strict aborts the monitor on the first malformed frame instead of
	// logging and discarding it.
	Strict bool `toml:"strict"`
}

type DashboardConfig struct {
	HTTPAddr string   `toml:"http_addr"`
	Refresh  Duration `toml:"refresh"`
}

type CANConfig struct {
	Interface string `toml:"interface"`
}

type Config struct {
	Receiver  ReceiverConfig  `toml:"receiver"`
	Decoder   DecoderConfig   `toml:"decoder"`
	History   HistoryConfig   `toml:"history"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Dashboard DashboardConfig `toml:"dashboard"`
	CAN       CANConfig       `toml:"can"`
}

func DefaultConfig() Config {
	return Config{
		Receiver: ReceiverConfig{
			Address:     "0.0.0.0",
			Port:        DefaultPort,
			ReadTimeout: Duration{receiver.DefaultReadTimeout},
			SerialBaud:  DefaultSerialBaud,
		},
		History: HistoryConfig{
			Capacity:      DefaultHistoryCapacity,
			TrackCapacity: DefaultTrackCapacity,
		},
		Dashboard: DashboardConfig{
			Refresh: Duration{DefaultRefresh},
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults.
func LoadConfig(fileName string) (Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(r io.Reader) (Config, error) {
	configData, err := io.ReadAll(r)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config reader")
	}
	cfg := DefaultConfig()
	md, err := toml.Decode(string(configData), &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to load configuration")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("unknown configuration key %q", undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings under which no useful work can proceed.
func (c Config) Validate() error {
	r := c.Receiver
	if r.PCAPFile != "" && r.SerialPort != "" {
		return errors.New("receiver: pcap_file and serial_port are mutually exclusive")
	}
	if r.PCAPFile == "" && r.SerialPort == "" && (r.Port < 1 || r.Port > 65535) {
		return errors.Errorf("receiver: port %d out of range", r.Port)
	}
	if r.MulticastGroup != "" {
		ip := net.ParseIP(r.MulticastGroup)
		if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
			return errors.Errorf("receiver: %q is not an IPv4 multicast group", r.MulticastGroup)
		}
	}
	if r.SerialPort != "" && r.SerialBaud < 1 {
		return errors.Errorf("receiver: invalid serial baud rate %d", r.SerialBaud)
	}
	if c.History.Capacity < 1 {
		return errors.Errorf("history: capacity must be at least 1, got %d", c.History.Capacity)
	}
	if c.History.TrackCapacity < 0 {
		return errors.Errorf("history: negative track capacity %d", c.History.TrackCapacity)
	}
	if c.Dashboard.Refresh.Duration <= 0 {
		return errors.Errorf("dashboard: refresh must be positive, got %v", c.Dashboard.Refresh)
	}
	return nil
}
