// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/imu_visualiser/internal/wire"
)

// SenderOptions configures the simulated IMU stream.
type SenderOptions struct {
	Host   string
	Port   int
	RateHz int
	IMUs   int
	Mode   string // "sync" or "random"
}

// Axes the simulated IMUs cycle through, one per id.
var senderBaseAxes = []mgl64.Vec3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
	{0.707, 0.707, 0},
	{0, 0.707, 0.707},
	{0.707, 0, 0.707},
}

// RunTestSender streams binary quaternion packets over UDP until
// interrupted. In "sync" mode each simulated IMU rotates steadily about
// its own slightly tilted axis at its own speed; in "random" mode every
// packet carries a uniformly random unit quaternion.
func RunTestSender(opts SenderOptions) error {
	if opts.Mode != "sync" && opts.Mode != "random" {
		return fmt.Errorf("mode must be \"sync\" or \"random\", got %q", opts.Mode)
	}
	if opts.IMUs < 1 || opts.IMUs > 256 {
		return fmt.Errorf("imus must be 1-256, got %d", opts.IMUs)
	}
	if opts.RateHz < 1 {
		return fmt.Errorf("rate must be positive, got %d", opts.RateHz)
	}

	addr := &net.UDPAddr{IP: net.ParseIP(opts.Host), Port: opts.Port}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s:%d: %w", opts.Host, opts.Port, err)
	}
	defer conn.Close()

	interval := time.Second / time.Duration(opts.RateHz)

	log.Printf("test sender targeting %s:%d at %d Hz, mode %s, %d IMUs",
		opts.Host, opts.Port, opts.RateHz, opts.Mode, opts.IMUs)

	// Per-IMU rotation state for sync mode: unique speed, alternating
	// direction, unique axis with a small random tilt so the objects
	// stay visually distinct.
	angles := make([]float64, opts.IMUs)
	speeds := make([]float64, opts.IMUs)
	axes := make([]mgl64.Vec3, opts.IMUs)
	for i := range speeds {
		speed := 20.0 + float64(i)*15.0
		if i%2 == 1 {
			speed = -speed
		}
		speeds[i] = speed

		axis := senderBaseAxes[i%len(senderBaseAxes)]
		tilt := mgl64.Vec3{
			(rand.Float64() - 0.5) * 0.1,
			(rand.Float64() - 0.5) * 0.1,
			(rand.Float64() - 0.5) * 0.1,
		}
		axes[i] = axis.Add(tilt).Normalize()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			log.Println("stopping sender")
			return nil
		case <-ticker.C:
		}

		for i := 0; i < opts.IMUs; i++ {
			var q mgl64.Quat
			if opts.Mode == "sync" {
				angles[i] = math.Mod(angles[i]+speeds[i]*interval.Seconds(), 360.0)
				q = mgl64.QuatRotate(mgl64.DegToRad(angles[i]), axes[i])
			} else {
				q = randomQuat()
			}

			pkt := wire.EncodeBinary(uint8(i), q.W, q.X(), q.Y(), q.Z())
			if _, err := conn.Write(pkt); err != nil {
				log.Printf("send error: %v", err)
			}
		}
	}
}

// randomQuat returns a uniformly distributed unit quaternion
// (Shoemake's subgroup algorithm).
func randomQuat() mgl64.Quat {
	u0, u1, u2 := rand.Float64(), rand.Float64(), rand.Float64()
	w := math.Sqrt(1-u0) * math.Sin(2*math.Pi*u1)
	x := math.Sqrt(1-u0) * math.Cos(2*math.Pi*u1)
	y := math.Sqrt(u0) * math.Sin(2*math.Pi*u2)
	z := math.Sqrt(u0) * math.Cos(2*math.Pi*u2)
	return mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}
}
