// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package viewer

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/imu_visualiser/internal/orientation"
)

// oledMaxRows is how many IMU lines fit on the 128x64 panel with the
// 7x13 face plus a title row.
const oledMaxRows = 4

// OLED draws per-IMU Euler angles on an SSD1306 128x64 I2C display. One
// device is shared by all source ids; each render redraws the full frame
// from the latest poses.
type OLED struct {
	mu    sync.Mutex
	dev   *ssd1306.Dev
	poses map[uint8]orientation.Pose
}

// NewOLED initializes periph, opens the default I2C bus, and sets up the
// display. busName selects a specific bus; empty means the first one.
func NewOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}

	o := &OLED{dev: dev, poses: make(map[uint8]orientation.Pose)}
	if err := o.drawWaiting(); err != nil {
		return nil, err
	}
	return o, nil
}

// Viewer returns the consumer for one source id backed by this display.
func (o *OLED) Viewer(id uint8) Viewer {
	return &oledViewer{oled: o, id: id}
}

func (o *OLED) drawWaiting() error {
	img := newBlankFrame()
	drawer := frameDrawer(img)
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte("IMU Visualiser"))
	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte("Waiting..."))
	return o.dev.Draw(o.dev.Bounds(), img, image.Point{})
}

// drawFrame redraws the whole panel from the latest poses, lowest ids
// first, as many as fit.
func (o *OLED) drawFrame() error {
	o.mu.Lock()
	ids := make([]uint8, 0, len(o.poses))
	for id := range o.poses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > oledMaxRows {
		ids = ids[:oledMaxRows]
	}
	rows := make([]string, 0, len(ids))
	for _, id := range ids {
		p := o.poses[id]
		rows = append(rows, fmt.Sprintf("%d R%5.0f P%5.0f Y%5.0f", id, p.Roll, p.Pitch, p.Yaw))
	}
	o.mu.Unlock()

	img := newBlankFrame()
	drawer := frameDrawer(img)
	for i, row := range rows {
		drawer.Dot = fixed.P(0, 13+13*i)
		drawer.DrawBytes([]byte(row))
	}
	return o.dev.Draw(o.dev.Bounds(), img, image.Point{})
}

func newBlankFrame() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img
}

func frameDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

type oledViewer struct {
	oled *OLED
	id   uint8
}

func (v *oledViewer) SetOrientation(q mgl64.Quat) {
	p := orientation.PoseFromQuat(q)
	v.oled.mu.Lock()
	v.oled.poses[v.id] = p
	v.oled.mu.Unlock()
}

func (v *oledViewer) Render() error {
	return v.oled.drawFrame()
}
