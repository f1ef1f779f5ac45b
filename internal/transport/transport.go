// Package transport delivers raw records from an IMU link to the pipeline.
//
// A Source owns one background worker goroutine running a blocking read
// loop against a serial device or a UDP socket. The worker communicates
// exclusively through channels: discrete records (one text line or one
// datagram) on Records, fatal link errors on Errors. The device handle is
// owned and closed by the worker on every exit path; it is never touched
// from the consuming side.
//
// Stop is cooperative: the worker observes a stop signal within its own
// poll bound, and Stop waits for it with a join timeout strictly greater
// than that bound. A worker that still fails to stop in time is abandoned
// with a logged warning rather than blocking shutdown.
package transport

// Source is a background reader for one IMU link.
type Source interface {
	// Start opens the underlying device and launches the worker.
	// An open/bind failure is returned directly and no worker runs.
	Start() error

	// Records yields discrete transport units. The channel is closed
	// when the worker exits, on every path.
	Records() <-chan []byte

	// Errors yields at most one fatal link error before the worker
	// exits. Buffered; never blocks the worker.
	Errors() <-chan error

	// Stop asks the worker to finish and waits for it, bounded.
	// Safe to call more than once.
	Stop()

	// Name describes the link for status messages and logs.
	Name() string
}

// Channel capacity between the worker and the pipeline. Arrival bursts
// beyond this block the worker briefly, never the consumer.
const recordBacklog = 256
