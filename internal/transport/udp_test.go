package transport

import (
	"bytes"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func sendDatagram(t *testing.T, addr *net.UDPAddr, payload []byte) {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvRecord(src *UDPSource) ([]byte, bool) {
	select {
	case rec, ok := <-src.Records():
		return rec, ok
	case <-time.After(2 * time.Second):
		return nil, false
	}
}

func TestUDPSource(t *testing.T) {
	Convey("Given a UDP source on an ephemeral port", t, func() {
		src := NewUDPSource(0)
		So(src.Start(), ShouldBeNil)
		addr := src.LocalAddr()
		So(addr, ShouldNotBeNil)
		So(addr.Port, ShouldBeGreaterThan, 0)

		Convey("each datagram arrives as one record", func() {
			payload := []byte{2, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
			sendDatagram(t, addr, payload)

			rec, ok := recvRecord(src)
			So(ok, ShouldBeTrue)
			So(bytes.Equal(rec, payload), ShouldBeTrue)

			src.Stop()
		})

		Convey("datagram boundaries are preserved across sends", func() {
			sendDatagram(t, addr, []byte("first"))
			sendDatagram(t, addr, []byte("second"))

			rec, ok := recvRecord(src)
			So(ok, ShouldBeTrue)
			So(string(rec), ShouldEqual, "first")

			rec, ok = recvRecord(src)
			So(ok, ShouldBeTrue)
			So(string(rec), ShouldEqual, "second")

			src.Stop()
		})

		Convey("an oversized datagram is forwarded whole, not split", func() {
			payload := bytes.Repeat([]byte{0xAB}, 100)
			sendDatagram(t, addr, payload)

			rec, ok := recvRecord(src)
			So(ok, ShouldBeTrue)
			So(rec, ShouldHaveLength, 100)

			src.Stop()
		})

		Convey("Stop closes the record channel and joins the worker", func() {
			src.Stop()
			_, ok := recvRecord(src)
			So(ok, ShouldBeFalse)

			Convey("and a second Stop is harmless", func() {
				src.Stop()
			})
		})

		Convey("the name identifies the endpoint", func() {
			So(src.Name(), ShouldStartWith, "udp 127.0.0.1:")
			src.Stop()
		})
	})

	Convey("Two sources cannot share a port", t, func() {
		first := NewUDPSource(0)
		So(first.Start(), ShouldBeNil)
		defer first.Stop()

		second := NewUDPSource(first.LocalAddr().Port)
		So(second.Start(), ShouldNotBeNil)
	})
}
