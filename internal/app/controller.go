package app

import (
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/relabs-tech/imu_visualiser/internal/rawlog"
	"github.com/relabs-tech/imu_visualiser/internal/registry"
	"github.com/relabs-tech/imu_visualiser/internal/transport"
	"github.com/relabs-tech/imu_visualiser/internal/viewer"
	"github.com/relabs-tech/imu_visualiser/internal/wire"
)

const (
	// RenderInterval is the fixed consumer cadence (~60 Hz). Sample
	// arrival rate never changes it; faster sources are conflated,
	// slower ones render unchanged.
	RenderInterval = 16 * time.Millisecond

	// WatchdogInterval is how often staleness is checked.
	WatchdogInterval = 1 * time.Second

	// StaleAfter is the silence threshold. No received record for longer
	// than this while connected means the link is considered dead even
	// if the device handle is still technically open.
	StaleAfter = 2 * time.Second
)

// Status is the connection lifecycle state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Controller owns at most one active connection and everything downstream
// of it: the transport worker, the per-source orientation registry, the
// viewer arena, and the two fixed-period timers (render and watchdog).
// All decode, registry, and render work happens on a single event-loop
// goroutine; the transport worker only ever talks to it through channels.
type Controller struct {
	clk     clock.Clock
	reg     *registry.Registry
	views   *viewer.Set
	logSink rawlog.Sink

	mu        sync.Mutex
	status    Status
	statusMsg string
	src       transport.Source
	stop      chan struct{}
	loopDone  chan struct{}
	onStatus  func(Status, string)
}

// NewController builds a controller in the Disconnected state. factory
// creates the viewer for each newly sighted IMU id; sink receives every
// raw record with its parse outcome.
func NewController(clk clock.Clock, factory viewer.Factory, sink rawlog.Sink) *Controller {
	if sink == nil {
		sink = rawlog.Discard
	}
	return &Controller{
		clk:       clk,
		reg:       registry.New(),
		views:     viewer.NewSet(factory),
		logSink:   sink,
		status:    StatusDisconnected,
		statusMsg: "Disconnected",
	}
}

// SetStatusListener registers fn for every status transition. fn runs on
// whichever goroutine performs the transition and must not call back into
// the Controller.
func (c *Controller) SetStatusListener(fn func(Status, string)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// Status returns the current lifecycle state and its display message.
func (c *Controller) Status() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.statusMsg
}

// Registry exposes the orientation registry, mainly for status surfaces
// and tests.
func (c *Controller) Registry() *registry.Registry { return c.reg }

// Views exposes the viewer arena so callers can pre-allocate display
// slots for the configured IMU count.
func (c *Controller) Views() *viewer.Set { return c.views }

// Connect starts the transport worker and the pipeline for it. If a
// connection is already active it is fully torn down first; two transports
// never run concurrently. On return the event loop is running and both
// timers are armed.
func (c *Controller) Connect(src transport.Source, dec wire.Decoder) error {
	c.Disconnect()

	if err := src.Start(); err != nil {
		c.setStatus(StatusError, err.Error())
		return err
	}

	stop := make(chan struct{})
	loopDone := make(chan struct{})
	started := make(chan struct{})

	c.mu.Lock()
	c.src = src
	c.stop = stop
	c.loopDone = loopDone
	c.mu.Unlock()

	c.setStatus(StatusConnecting, fmt.Sprintf("Connecting (%s)...", src.Name()))

	go c.run(src, dec, stop, loopDone, started)
	<-started
	return nil
}

// Disconnect tears down the active connection, if any, and returns to
// Disconnected. This is the explicit user action that clears a sticky
// Error status.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	stop := c.stop
	loopDone := c.loopDone
	c.stop = nil
	c.loopDone = nil
	c.src = nil
	idle := c.status == StatusDisconnected
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-loopDone
	}

	c.reg.Reset()
	c.views.Reset()
	if !idle {
		c.setStatus(StatusDisconnected, "Disconnected")
	}
}

// run is the single-threaded render/lifecycle context. Everything that
// touches the registry or the viewers happens here.
func (c *Controller) run(src transport.Source, dec wire.Decoder, stop, loopDone, started chan struct{}) {
	defer close(loopDone)
	defer src.Stop()

	render := c.clk.Ticker(RenderInterval)
	defer render.Stop()
	watchdog := c.clk.Ticker(WatchdogInterval)
	defer watchdog.Stop()

	close(started)

	var lastRecord time.Time
	gotRecord := false

	for {
		select {
		case <-stop:
			return

		case rec, ok := <-src.Records():
			if !ok {
				// Worker finished on its own. Never downgrade a
				// visible Error to a plain Disconnected.
				c.workerFinished()
				return
			}
			// Receipt, not validity, feeds the watchdog: a device
			// that streams garbage is alive, just misconfigured.
			lastRecord = c.clk.Now()
			gotRecord = true
			c.handleRecord(rec, dec)

		case err := <-src.Errors():
			c.fail(err.Error())
			return

		case <-render.C:
			c.renderTick()

		case <-watchdog.C:
			if gotRecord && c.clk.Now().Sub(lastRecord) > StaleAfter {
				c.fail("Connection timed out")
				return
			}
		}
	}
}

// handleRecord decodes one transport unit. Decode failures are
// data-quality events: logged with parsed=false, registry untouched,
// connection state unchanged.
func (c *Controller) handleRecord(rec []byte, dec wire.Decoder) {
	sample, err := dec.Decode(rec)
	parsed := err == nil
	c.logSink.Append(recordText(rec), parsed)
	if !parsed {
		return
	}

	if created := c.reg.Update(sample.SourceID, sample.Quat); created {
		log.Printf("registered new IMU source id %d", sample.SourceID)
	}

	// Only a successfully parsed and normalized sample proves the link
	// is delivering orientation data.
	c.mu.Lock()
	if c.status == StatusConnecting {
		c.setStatusLocked(StatusConnected, "Connected")
	}
	c.mu.Unlock()
}

// renderTick drains the dirty set: for every source with a pending update,
// push the latest orientation to its viewer and draw once. Sources without
// new data are skipped entirely.
func (c *Controller) renderTick() {
	c.reg.Flush(func(id uint8, q mgl64.Quat) {
		v, err := c.views.For(id)
		if err != nil {
			log.Printf("%v", err)
			return
		}
		v.SetOrientation(q)
		if err := v.Render(); err != nil {
			log.Printf("render error for IMU %d: %v", id, err)
		}
	})
}

// fail transitions to Error with a sticky message. The caller returns from
// the event loop right after, which stops both timers and the transport.
func (c *Controller) fail(msg string) {
	c.setStatus(StatusError, msg)
}

func (c *Controller) workerFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusError {
		c.setStatusLocked(StatusDisconnected, "Disconnected")
	}
}

func (c *Controller) setStatus(s Status, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStatusLocked(s, msg)
}

func (c *Controller) setStatusLocked(s Status, msg string) {
	c.status = s
	c.statusMsg = msg
	fn := c.onStatus
	log.Printf("connection status: %s (%s)", s, msg)
	if fn != nil {
		fn(s, msg)
	}
}

// recordText renders a raw record for the log sink: text records as-is,
// binary ones hex-encoded.
func recordText(rec []byte) string {
	if utf8.Valid(rec) {
		return string(rec)
	}
	return hex.EncodeToString(rec)
}
