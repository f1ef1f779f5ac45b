package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visualiser_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a configuration file", t, func() {
		Convey("a full serial-mode config parses with comments and blanks", func() {
			path := writeConfig(t, `
# transport
MODE=serial
SERIAL_PORT=/dev/ttyUSB0
SERIAL_BAUD_RATE=230400

# viewers
CONSOLE_LOG_INTERVAL = 250
WEB_SERVER_PORT=8080
MQTT_BROKER=tcp://localhost:1883
MQTT_TOPIC_PREFIX=lab/imu
OLED_ENABLED=true
OLED_I2C_BUS=1

LOG_FILE=/tmp/raw.log
LOG_BUFFER_LINES=500
UI_IMU_SLOTS=6
`)
			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.Mode, ShouldEqual, "serial")
			So(cfg.SerialPort, ShouldEqual, "/dev/ttyUSB0")
			So(cfg.SerialBaud, ShouldEqual, 230400)
			So(cfg.ConsoleLogInterval, ShouldEqual, 250)
			So(cfg.WebServerPort, ShouldEqual, 8080)
			So(cfg.MQTTBroker, ShouldEqual, "tcp://localhost:1883")
			So(cfg.MQTTTopicPrefix, ShouldEqual, "lab/imu")
			So(cfg.OLEDEnabled, ShouldBeTrue)
			So(cfg.OLEDI2CBus, ShouldEqual, "1")
			So(cfg.LogFile, ShouldEqual, "/tmp/raw.log")
			So(cfg.LogBufferLines, ShouldEqual, 500)
			So(cfg.UIIMUSlots, ShouldEqual, 6)
		})

		Convey("unspecified keys keep their defaults", func() {
			path := writeConfig(t, "MODE=udp\n")
			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.UDPListenPort, ShouldEqual, 12345)
			So(cfg.MaxSourceID, ShouldEqual, 255)
			So(cfg.UIIMUSlots, ShouldEqual, 2)
			So(cfg.LogBufferLines, ShouldEqual, 1000)
			So(cfg.MQTTClientID, ShouldEqual, "imu-visualiser")
			So(cfg.PrefsFile, ShouldEqual, "preferences.json")
		})

		Convey("an unknown key is rejected with its line number", func() {
			path := writeConfig(t, "MODE=udp\nBOGUS_KEY=1\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "line 2")
			So(err.Error(), ShouldContainSubstring, "BOGUS_KEY")
		})

		Convey("a line without '=' is rejected", func() {
			path := writeConfig(t, "MODE serial\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "invalid config line 1")
		})

		Convey("serial mode requires a port", func() {
			path := writeConfig(t, "MODE=serial\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SERIAL_PORT")
		})

		Convey("udp mode requires a port", func() {
			path := writeConfig(t, "MODE=udp\nUDP_LISTEN_PORT=0\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "UDP_LISTEN_PORT")
		})

		Convey("an invalid mode is rejected", func() {
			path := writeConfig(t, "MODE=bluetooth\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "MODE")
		})

		Convey("MAX_SOURCE_ID accepts -1 to disable the range check", func() {
			path := writeConfig(t, "MODE=udp\nMAX_SOURCE_ID=-1\n")
			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.MaxSourceID, ShouldEqual, -1)
		})

		Convey("MAX_SOURCE_ID outside -1..255 is rejected", func() {
			path := writeConfig(t, "MODE=udp\nMAX_SOURCE_ID=256\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "MAX_SOURCE_ID")
		})

		Convey("LOG_BUFFER_LINES must be positive", func() {
			path := writeConfig(t, "MODE=udp\nLOG_BUFFER_LINES=0\n")
			_, err := Load(path)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "LOG_BUFFER_LINES")
		})

		Convey("a missing file reports the open failure", func() {
			_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to open config file")
		})
	})
}
