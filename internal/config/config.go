package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents configuration data for the telemetry probe.
type Config struct {
	AppName          string       `yaml:"app_name"`
	IntervalMinutes  int          `yaml:"interval_minutes"`
	DataFile         string       `yaml:"data_file"`
	ArchiveDirectory string       `yaml:"archive_directory"`
	ListenAddr       string       `yaml:"listen_addr"`
	LogLevel         string       `yaml:"log_level"`
	LogJSON          bool         `yaml:"log_json"`
	DiskPath         string       `yaml:"disk_path"`
	Thresholds       Thresholds   `yaml:"thresholds"`
	Reports          Reports      `yaml:"reports"`
	MQTT             MQTT         `yaml:"mqtt"`
	Connectivity     Connectivity `yaml:"connectivity"`
	Machines         []Machine    `yaml:"machines"`
}

// Thresholds trigger an immediate report when a reading reaches them.
type Thresholds struct {
	CPULoadPercent  float64 `yaml:"cpu_load_percent"`
	CPUTemp         float64 `yaml:"cpu_temp"`
	DiskUsedPercent float64 `yaml:"disk_used_percent"`
}

// Reports controls the periodic notifications.
type Reports struct {
	Email Schedule `yaml:"email"`
	MQTT  Schedule `yaml:"mqtt"`
}

// Schedule enables a notification and sets its minimum spacing.
type Schedule struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

// Interval returns the spacing as a duration.
func (s Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// MQTT names the broker and topics used when publishing readings.
type MQTT struct {
	Broker string `yaml:"broker"`
	Topics Topics `yaml:"topics"`
}

// Topics maps each published reading to its topic.
type Topics struct {
	Alive            string `yaml:"alive"`
	CPUTemp          string `yaml:"cpu_temp"`
	CPULoad          string `yaml:"cpu_load"`
	Internet         string `yaml:"internet"`
	DiskUsagePercent string `yaml:"disk_usage_percent"`
}

// Connectivity configures the internet check.
type Connectivity struct {
	Target         string `yaml:"target"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the dial timeout.
func (c Connectivity) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Machine is a host whose reachability is probed on every poll.
type Machine struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	Port           int    `yaml:"port"`
	Method         string `yaml:"method"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the dial timeout.
func (m Machine) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		AppName:         "watchtorian",
		IntervalMinutes: 5,
		DataFile:        filepath.Join("poll_data", "polldata.dat"),
		LogLevel:        "info",
		DiskPath:        "/",
		Thresholds: Thresholds{
			CPULoadPercent:  90,
			CPUTemp:         75,
			DiskUsedPercent: 90,
		},
		Reports: Reports{
			Email: Schedule{Enabled: true, IntervalMinutes: 24 * 60},
			MQTT:  Schedule{Enabled: false, IntervalMinutes: 60},
		},
		MQTT: MQTT{
			Topics: Topics{
				Alive:            "watchtorian/alive",
				CPUTemp:          "watchtorian/cpu_temp",
				CPULoad:          "watchtorian/cpu_load",
				Internet:         "watchtorian/internet",
				DiskUsagePercent: "watchtorian/disk_usage_percent",
			},
		},
		Connectivity: Connectivity{
			Target:         "1.1.1.1:53",
			TimeoutSeconds: 4,
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() error {
	defaults := DefaultConfig()
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = defaults.IntervalMinutes
	}
	if c.DataFile == "" {
		c.DataFile = defaults.DataFile
	}
	if c.DiskPath == "" {
		c.DiskPath = defaults.DiskPath
	}
	if c.AppName == "" {
		c.AppName = defaults.AppName
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = defaults.LogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.Connectivity.TimeoutSeconds <= 0 {
		c.Connectivity.TimeoutSeconds = defaults.Connectivity.TimeoutSeconds
	}
	if c.Connectivity.Target == "" {
		c.Connectivity.Target = defaults.Connectivity.Target
	}
	for name, s := range map[string]Schedule{"email": c.Reports.Email, "mqtt": c.Reports.MQTT} {
		if s.Enabled && s.IntervalMinutes <= 0 {
			return fmt.Errorf("reports.%s.interval_minutes must be positive", name)
		}
	}

	seen := make(map[string]struct{}, len(c.Machines))
	for i := range c.Machines {
		m := &c.Machines[i]
		if m.Name == "" {
			return fmt.Errorf("machine %d is missing name", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("machine %s is defined twice", m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Address == "" {
			return fmt.Errorf("machine %s address is required", m.Name)
		}
		if m.Port <= 0 || m.Port > 65535 {
			return fmt.Errorf("machine %s port %d is out of range", m.Name, m.Port)
		}
		if strings.ContainsAny(m.Name+m.Address+m.Method, "¤,;\r\n") {
			return fmt.Errorf("machine %s contains a reserved character (¤ , ;)", m.Name)
		}
		if m.Method == "" {
			m.Method = "TCP/ping"
		}
		if m.TimeoutSeconds <= 0 {
			m.TimeoutSeconds = c.Connectivity.TimeoutSeconds
		}
	}
	return nil
}
