package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/imu_visualiser/internal/app"
)

func main() {
	host := flag.String("host", "127.0.0.1", "target host")
	port := flag.Int("port", 12345, "target UDP port")
	rate := flag.Int("rate", 50, "packets per second per IMU")
	imus := flag.Int("imus", 4, "number of simulated IMUs")
	mode := flag.String("mode", "sync", "\"sync\" or \"random\"")
	flag.Parse()

	err := app.RunTestSender(app.SenderOptions{
		Host:   *host,
		Port:   *port,
		RateHz: *rate,
		IMUs:   *imus,
		Mode:   *mode,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
