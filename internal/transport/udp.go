package transport

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// udpReadDeadline bounds each receive purely so the worker can
	// observe a stop request; expiry is expected idle polling, not an
	// error.
	udpReadDeadline = 1 * time.Second

	// udpJoinTimeout exceeds udpReadDeadline so the worker sees the
	// stop signal before the join gives up.
	udpJoinTimeout = 1500 * time.Millisecond

	// udpBufferSize caps a single datagram. Valid packets are 17 bytes;
	// oversized ones are forwarded whole and rejected by the decoder.
	udpBufferSize = 1024
)

// UDPSource listens for datagrams on localhost and forwards each one,
// whatever its size, as a raw record. Used for test mode: a sender process
// simulates any number of IMUs against the same socket.
type UDPSource struct {
	listenHost string
	listenPort int

	conn *net.UDPConn

	records  chan []byte
	errs     chan error
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewUDPSource(listenPort int) *UDPSource {
	return &UDPSource{
		listenHost: "127.0.0.1",
		listenPort: listenPort,
		records:    make(chan []byte, recordBacklog),
		errs:       make(chan error, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (u *UDPSource) Name() string {
	return fmt.Sprintf("udp %s:%d", u.listenHost, u.listenPort)
}

func (u *UDPSource) Records() <-chan []byte { return u.records }
func (u *UDPSource) Errors() <-chan error   { return u.errs }

// LocalAddr reports the bound address. Useful when the source was created
// with port 0 and the kernel picked one.
func (u *UDPSource) LocalAddr() *net.UDPAddr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr().(*net.UDPAddr)
}

func (u *UDPSource) Start() error {
	addr := &net.UDPAddr{IP: net.ParseIP(u.listenHost), Port: u.listenPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to open UDP socket on %s:%d", u.listenHost, u.listenPort)
	}
	u.conn = conn

	go u.run(conn)
	return nil
}

func (u *UDPSource) run(conn *net.UDPConn) {
	defer close(u.done)
	defer close(u.records)
	defer conn.Close()

	log.Printf("UDP worker started, listening on %v", conn.LocalAddr())

	buf := make([]byte, udpBufferSize)
	for {
		select {
		case <-u.stop:
			log.Println("UDP worker thread has finished")
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(udpReadDeadline)); err != nil {
			u.reportError(errors.Wrap(err, "UDP socket error"))
			return
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			select {
			case <-u.stop:
				// Socket torn down by Stop racing the read.
				log.Println("UDP worker thread has finished")
				return
			default:
			}
			// Transient receive errors (e.g. ICMP unreachable from a
			// previous sender) are logged and the loop keeps going.
			log.Printf("UDP worker error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		rec := append([]byte(nil), buf[:n]...)
		select {
		case u.records <- rec:
		case <-u.stop:
			log.Println("UDP worker thread has finished")
			return
		}
	}
}

func (u *UDPSource) reportError(err error) {
	select {
	case u.errs <- err:
	default:
	}
}

func (u *UDPSource) Stop() {
	u.stopOnce.Do(func() { close(u.stop) })
	select {
	case <-u.done:
	case <-time.After(udpJoinTimeout):
		log.Printf("WARNING: UDP worker on %s:%d did not stop within %v", u.listenHost, u.listenPort, udpJoinTimeout)
	}
}
