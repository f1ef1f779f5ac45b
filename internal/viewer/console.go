package viewer

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/imu_visualiser/internal/orientation"
)

// Console prints the current orientation of one IMU. Printing at the full
// 60 Hz render rate would swamp a terminal, so output is rate-limited to
// the configured interval; render ticks inside the window keep the state
// update and skip the print.
type Console struct {
	id       uint8
	out      io.Writer
	interval time.Duration

	mu        sync.Mutex
	quat      mgl64.Quat
	have      bool
	lastPrint time.Time
}

func NewConsole(id uint8, out io.Writer, interval time.Duration) *Console {
	return &Console{id: id, out: out, interval: interval}
}

func (c *Console) SetOrientation(q mgl64.Quat) {
	c.mu.Lock()
	c.quat = q
	c.have = true
	c.mu.Unlock()
}

func (c *Console) Render() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.have {
		return nil
	}
	now := time.Now()
	if c.interval > 0 && now.Sub(c.lastPrint) < c.interval {
		return nil
	}
	c.lastPrint = now

	p := orientation.PoseFromQuat(c.quat)
	_, err := fmt.Fprintf(c.out,
		"[IMU %d]  W=%7.4f X=%7.4f Y=%7.4f Z=%7.4f | ROLL=%7.2f PITCH=%7.2f YAW=%7.2f\n",
		c.id, c.quat.W, c.quat.X(), c.quat.Y(), c.quat.Z(),
		p.Roll, p.Pitch, p.Yaw,
	)
	return err
}
