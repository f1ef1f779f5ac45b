package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/imu_visualiser/internal/config"
	"github.com/relabs-tech/imu_visualiser/internal/ports"
	"github.com/relabs-tech/imu_visualiser/internal/prefs"
	"github.com/relabs-tech/imu_visualiser/internal/rawlog"
	"github.com/relabs-tech/imu_visualiser/internal/transport"
	"github.com/relabs-tech/imu_visualiser/internal/viewer"
	"github.com/relabs-tech/imu_visualiser/internal/wire"
)

// RunVisualiser wires the whole pipeline from the global config and runs
// it until SIGINT/SIGTERM.
func RunVisualiser() error {
	cfg := config.Get()
	pf := prefs.Load(cfg.PrefsFile)

	// --- Raw record log ---
	logSettings := pf.Logger
	if logSettings.MaxLines == 0 {
		logSettings.MaxLines = cfg.LogBufferLines
	}
	buffer := rawlog.NewBuffer(logSettings)
	sinks := []rawlog.Sink{buffer}
	if cfg.LogFile != "" {
		fileSink, err := rawlog.NewFileSink(cfg.LogFile)
		if err != nil {
			return err
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
		log.Printf("raw records logged to %s", cfg.LogFile)
	}
	sink := rawlog.Multi(sinks...)

	// --- Consumers ---
	consoleInterval := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond

	var hub *viewer.Hub
	if cfg.WebServerPort > 0 {
		hub = viewer.NewHub()
		if err := hub.Start(fmt.Sprintf(":%d", cfg.WebServerPort)); err != nil {
			return err
		}
		defer hub.Close()
	}

	var pub *viewer.MQTTPublisher
	if cfg.MQTTBroker != "" {
		var err error
		pub, err = viewer.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			return err
		}
		defer pub.Disconnect()
	}

	var oled *viewer.OLED
	if cfg.OLEDEnabled {
		var err error
		oled, err = viewer.NewOLED(cfg.OLEDI2CBus)
		if err != nil {
			return err
		}
	}

	factory := func(id uint8) (viewer.Viewer, error) {
		views := []viewer.Viewer{viewer.NewConsole(id, os.Stdout, consoleInterval)}
		if hub != nil {
			views = append(views, hub.Viewer(id))
		}
		if pub != nil {
			views = append(views, pub.Viewer(id))
		}
		if oled != nil {
			views = append(views, oled.Viewer(id))
		}
		return viewer.Multi(views...), nil
	}

	ctrl := NewController(clock.New(), factory, sink)
	ctrl.SetStatusListener(func(s Status, msg string) {
		log.Printf("[%s] %s", s, msg)
	})

	// --- Transport + decoder, selected by mode, never auto-detected ---
	var src transport.Source
	var dec wire.Decoder
	switch cfg.Mode {
	case "serial":
		if available := ports.List(); len(available) > 0 {
			log.Printf("available serial ports: %v", available)
		}
		src = transport.NewSerialSource(cfg.SerialPort, cfg.SerialBaud)
		dec = wire.ASCIIDecoder{}
	case "udp":
		src = transport.NewUDPSource(cfg.UDPListenPort)
		dec = wire.BinaryDecoder{MaxSourceID: cfg.MaxSourceID}
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	// Pre-allocate display slots for the configured IMU count. The
	// registry still grows on first sighting of any id beyond this.
	for id := 0; id < cfg.UIIMUSlots && id < 256; id++ {
		if _, err := ctrl.Views().For(uint8(id)); err != nil {
			return err
		}
	}

	if err := ctrl.Connect(src, dec); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("shutting down")

	log.Printf("raw records captured: %d, conflated samples dropped: %d",
		buffer.Appended(), ctrl.Registry().Drops())
	ctrl.Disconnect()

	pf.LastMode = cfg.Mode
	pf.LastBaud = cfg.SerialBaud
	pf.Logger = buffer.Settings()
	if err := prefs.Save(cfg.PrefsFile, pf); err != nil {
		log.Printf("failed to save preferences: %v", err)
	}
	return nil
}
