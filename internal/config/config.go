package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Transport
	Mode          string // "serial" or "udp"
	SerialPort    string
	SerialBaud    uint
	UDPListenPort int

	// MaxSourceID is the highest binary-protocol IMU id accepted; packets
	// addressed above it are rejected as malformed. -1 disables the check.
	MaxSourceID int

	// UIIMUSlots is how many display slots the UI pre-allocates. The
	// registry itself still grows on first sighting of any id, including
	// ids beyond this count.
	UIIMUSlots int

	// Console viewer
	ConsoleLogInterval int // milliseconds, 0 prints every render tick

	// Web viewer
	WebServerPort int // 0 disables the web viewer

	// MQTT viewer
	MQTTBroker      string // empty disables the MQTT viewer
	MQTTClientID    string
	MQTTTopicPrefix string

	// OLED viewer
	OLEDEnabled bool
	OLEDI2CBus  string // empty selects the first bus

	// Raw record log
	LogFile        string // empty disables the file sink
	LogBufferLines int

	// Preferences
	PrefsFile string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get() allows multiple concurrent readers.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

func defaults() *Config {
	return &Config{
		Mode:               "serial",
		SerialBaud:         115200,
		UDPListenPort:      12345,
		MaxSourceID:        255,
		UIIMUSlots:         2,
		ConsoleLogInterval: 500,
		MQTTClientID:       "imu-visualiser",
		MQTTTopicPrefix:    "imu",
		LogBufferLines:     1000,
		PrefsFile:          "preferences.json",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Transport
	case "MODE":
		if value != "serial" && value != "udp" {
			return fmt.Errorf("MODE must be \"serial\" or \"udp\", got %q", value)
		}
		c.Mode = value
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaud = uint(rate)
	case "UDP_LISTEN_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid UDP_LISTEN_PORT %q: %w", value, err)
		}
		if port < 0 || port > 65535 {
			return fmt.Errorf("UDP_LISTEN_PORT must be 0-65535, got %d", port)
		}
		c.UDPListenPort = port

	// Source ids
	case "MAX_SOURCE_ID":
		id, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_SOURCE_ID %q: %w", value, err)
		}
		if id < -1 || id > 255 {
			return fmt.Errorf("MAX_SOURCE_ID must be -1 to 255, got %d", id)
		}
		c.MaxSourceID = id
	case "UI_IMU_SLOTS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid UI_IMU_SLOTS %q: %w", value, err)
		}
		if n < 0 || n > 256 {
			return fmt.Errorf("UI_IMU_SLOTS must be 0-256, got %d", n)
		}
		c.UIIMUSlots = n

	// Console viewer
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web viewer
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// MQTT viewer
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = value

	// OLED viewer
	case "OLED_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid OLED_ENABLED %q: %w", value, err)
		}
		c.OLEDEnabled = enabled
	case "OLED_I2C_BUS":
		c.OLEDI2CBus = value

	// Raw record log
	case "LOG_FILE":
		c.LogFile = value
	case "LOG_BUFFER_LINES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_BUFFER_LINES %q: %w", value, err)
		}
		if n <= 0 {
			return fmt.Errorf("LOG_BUFFER_LINES must be positive, got %d", n)
		}
		c.LogBufferLines = n

	// Preferences
	case "PREFS_FILE":
		c.PrefsFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set for the chosen mode.
func (c *Config) validate() error {
	switch c.Mode {
	case "serial":
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required in serial mode")
		}
		if c.SerialBaud == 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required in serial mode")
		}
	case "udp":
		if c.UDPListenPort == 0 {
			return fmt.Errorf("UDP_LISTEN_PORT is required in udp mode")
		}
	default:
		return fmt.Errorf("MODE must be \"serial\" or \"udp\", got %q", c.Mode)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
