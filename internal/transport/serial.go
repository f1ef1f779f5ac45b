package transport

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	serial "github.com/jacobsa/go-serial/serial"
)

const (
	// serialPollTimeout bounds each blocking read so the worker can
	// observe a stop request.
	serialPollTimeout = 100 * time.Millisecond

	// serialJoinTimeout must exceed serialPollTimeout so a stopping
	// worker is guaranteed a full poll cycle before being abandoned.
	serialJoinTimeout = 500 * time.Millisecond
)

// SerialSource reads newline-terminated records from a serial device,
// read-only, at a fixed baud rate.
type SerialSource struct {
	portName string
	baudRate uint

	records  chan []byte
	errs     chan error
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSerialSource(portName string, baudRate uint) *SerialSource {
	return &SerialSource{
		portName: portName,
		baudRate: baudRate,
		records:  make(chan []byte, recordBacklog),
		errs:     make(chan error, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *SerialSource) Name() string {
	return fmt.Sprintf("serial %s @ %d baud", s.portName, s.baudRate)
}

func (s *SerialSource) Records() <-chan []byte { return s.records }
func (s *SerialSource) Errors() <-chan error   { return s.errs }

// Start opens the port and launches the read worker. MinimumReadSize 0
// with a 100 ms inter-character timeout puts the port in polled mode:
// every read returns within the poll bound even when the line is silent,
// which is what lets Stop work without unplugging anything.
func (s *SerialSource) Start() error {
	opts := serial.OpenOptions{
		PortName:              s.portName,
		BaudRate:              s.baudRate,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(serialPollTimeout / time.Millisecond),
	}

	port, err := serial.Open(opts)
	if err != nil {
		return errors.Wrapf(err, "failed to open port %s", s.portName)
	}

	go s.run(port)
	return nil
}

func (s *SerialSource) run(port io.ReadCloser) {
	defer close(s.done)
	defer close(s.records)
	defer port.Close()

	log.Printf("serial worker started on %s at %d baud", s.portName, s.baudRate)

	var pending []byte
	buf := make([]byte, 256)

	for {
		select {
		case <-s.stop:
			log.Println("serial worker thread has finished")
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if !s.drainLines(&pending) {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				// Polled-mode timeout, not a link failure. Loop
				// again to re-check the stop signal.
				continue
			}
			// The device went away mid-session. Fatal for this
			// connection, never retried here.
			s.reportError(errors.Wrap(err, "device disconnected"))
			log.Printf("serial worker exiting: %v", err)
			return
		}
	}
}

// drainLines forwards every complete newline-terminated record currently
// buffered, without blocking for more input. Returns false if a stop
// request arrived while a delivery was pending.
func (s *SerialSource) drainLines(pending *[]byte) bool {
	for {
		idx := bytes.IndexByte(*pending, '\n')
		if idx < 0 {
			return true
		}
		line := bytes.TrimSpace((*pending)[:idx])
		*pending = (*pending)[idx+1:]
		if len(line) == 0 {
			continue
		}

		rec := append([]byte(nil), line...)
		select {
		case s.records <- rec:
		case <-s.stop:
			return false
		}
	}
}

func (s *SerialSource) reportError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Stop flips the stop signal and joins the worker, bounded. A worker that
// does not finish within the bound is abandoned with a warning; it still
// owns the port and will close it whenever its read finally returns.
func (s *SerialSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-time.After(serialJoinTimeout):
		log.Printf("WARNING: serial worker on %s did not stop within %v", s.portName, serialJoinTimeout)
	}
}
