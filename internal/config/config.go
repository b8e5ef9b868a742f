package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"nmeafix/internal/nmea"
)

type Config struct {
	GPS     GPSConfig     `yaml:"gps"`
	Quality QualityConfig `yaml:"quality"`
	Publish PublishConfig `yaml:"publish"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	UDP     UDPConfig     `yaml:"udp"`
	Web     WebConfig     `yaml:"web"`
	Log     LogConfig     `yaml:"log"`
}

type GPSConfig struct {
	Source      string        `yaml:"source"`
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	Addr        string        `yaml:"addr"`
	Path        string        `yaml:"path"`
	Follow      bool          `yaml:"follow"`
	ReplaySpeed float64       `yaml:"replay_speed"`
	ReplayLoop  bool          `yaml:"replay_loop"`
	Checksum    string        `yaml:"checksum"`
	MaxRecords  int           `yaml:"max_records"`
	Reconnect   time.Duration `yaml:"reconnect"`
	Record      RecordConfig  `yaml:"record"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// QualityConfig holds the publish quality bar. Zero values take the
// defaults; negative values disable that check.
type QualityConfig struct {
	MinSatellites int     `yaml:"min_satellites"`
	MaxHDOP       float64 `yaml:"max_hdop"`
	MaxVDOP       float64 `yaml:"max_vdop"`
}

type PublishConfig struct {
	CompleteOnly  bool `yaml:"complete_only"`
	FilterQuality bool `yaml:"filter_quality"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

const (
	SourceSerial = "serial"
	SourceTCP    = "tcp"
	SourceGPSD   = "gpsd"
	SourceFile   = "file"
	SourceReplay = "replay"
)

const defaultGPSDAddr = "127.0.0.1:2947"

// Default returns the configuration used when no file is given. Keys absent
// from a loaded file keep these values.
func Default() Config {
	return Config{
		GPS: GPSConfig{
			Baud:        4800,
			ReplaySpeed: 1,
			Checksum:    string(nmea.ChecksumPresent),
			Reconnect:   2 * time.Second,
		},
		Quality: QualityConfig{
			MinSatellites: nmea.DefaultMinSatellites,
			MaxHDOP:       nmea.DefaultMaxHDOP,
			MaxVDOP:       nmea.DefaultMaxVDOP,
		},
		Publish: PublishConfig{CompleteOnly: true, FilterQuality: true},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "nmeafix",
			Topic:    "nmeafix/records",
		},
		UDP: UDPConfig{Dest: "127.0.0.1:4000"},
		Web: WebConfig{Listen: ":8080"},
		Log: LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
	}
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", unknownFieldDetail(err))
		}
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// unknownFieldDetail strips yaml's "yaml: unmarshal errors:\n  line N: "
// prefix so the message does not depend on the input layout.
func unknownFieldDetail(err error) string {
	msg := err.Error()
	for _, line := range strings.Split(msg, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "field "); i >= 0 && strings.Contains(line, "not found in type") {
			return line[i:]
		}
	}
	return msg
}

// Validate applies the remaining defaults and checks cross-field rules.
func (cfg *Config) Validate() error {
	g := &cfg.GPS
	g.Source = strings.ToLower(strings.TrimSpace(g.Source))
	switch g.Source {
	case "":
		return fmt.Errorf("gps.source is required")
	case SourceSerial:
		if g.Device == "" {
			return fmt.Errorf("gps.device is required when gps.source is 'serial'")
		}
		if g.Baud == 0 {
			g.Baud = 4800
		}
		if g.Baud < 0 {
			return fmt.Errorf("gps.baud must be > 0")
		}
	case SourceTCP:
		if g.Addr == "" {
			return fmt.Errorf("gps.addr is required when gps.source is 'tcp'")
		}
	case SourceGPSD:
		if g.Addr == "" {
			g.Addr = defaultGPSDAddr
		}
	case SourceFile:
		if g.Path == "" {
			return fmt.Errorf("gps.path is required when gps.source is 'file'")
		}
	case SourceReplay:
		if g.Path == "" {
			return fmt.Errorf("gps.path is required when gps.source is 'replay'")
		}
		if g.ReplaySpeed == 0 {
			g.ReplaySpeed = 1
		}
		if g.ReplaySpeed < 0 {
			return fmt.Errorf("gps.replay_speed must be > 0")
		}
	default:
		return fmt.Errorf("gps.source must be one of serial, tcp, gpsd, file, replay")
	}

	mode, err := nmea.ParseChecksumMode(g.Checksum)
	if err != nil {
		return fmt.Errorf("gps.checksum must be one of present, require, ignore")
	}
	g.Checksum = string(mode)

	if g.MaxRecords < 0 {
		return fmt.Errorf("gps.max_records must be >= 0")
	}
	if g.Reconnect <= 0 {
		g.Reconnect = 2 * time.Second
	}

	if g.Record.Enable {
		if g.Source == SourceReplay {
			return fmt.Errorf("gps.record cannot be used with gps.source 'replay'")
		}
		if g.Record.Path == "" {
			return fmt.Errorf("gps.record.path is required when gps.record.enable is true")
		}
	}

	q := &cfg.Quality
	if q.MinSatellites == 0 {
		q.MinSatellites = nmea.DefaultMinSatellites
	}
	if q.MaxHDOP == 0 {
		q.MaxHDOP = nmea.DefaultMaxHDOP
	}
	if q.MaxVDOP == 0 {
		q.MaxVDOP = nmea.DefaultMaxVDOP
	}

	if cfg.MQTT.Enable {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt.enable is true")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.UDP.Enable && cfg.UDP.Dest == "" {
		return fmt.Errorf("udp.dest is required when udp.enable is true")
	}
	if cfg.Web.Enable && cfg.Web.Listen == "" {
		return fmt.Errorf("web.listen is required when web.enable is true")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be >= 0")
	}
	return nil
}

// Threshold returns the quality bar as the parser package expects it.
func (q QualityConfig) Threshold() nmea.Quality {
	return nmea.Quality{
		MinSatellites: q.MinSatellites,
		MaxHDOP:       q.MaxHDOP,
		MaxVDOP:       q.MaxVDOP,
	}
}

// ChecksumMode returns the validated checksum mode.
func (g GPSConfig) ChecksumMode() nmea.ChecksumMode {
	m, err := nmea.ParseChecksumMode(g.Checksum)
	if err != nil {
		return nmea.ChecksumPresent
	}
	return m
}
