package wire

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeASCII(t *testing.T) {
	Convey("A plain CSV quaternion line", t, func() {
		s, err := DecodeASCII("0.7071, 0.0, 0.7071, 0.0")
		So(err, ShouldBeNil)
		So(s.SourceID, ShouldEqual, ASCIISourceID)

		Convey("is stored essentially unchanged when already unit norm", func() {
			So(s.Quat.W, ShouldAlmostEqual, 0.7071, 1e-3)
			So(s.Quat.X(), ShouldAlmostEqual, 0.0, 1e-9)
			So(s.Quat.Y(), ShouldAlmostEqual, 0.7071, 1e-3)
			So(s.Quat.Z(), ShouldAlmostEqual, 0.0, 1e-9)
		})

		Convey("and has unit norm after decoding", func() {
			n := math.Sqrt(s.Quat.W*s.Quat.W + s.Quat.V.X()*s.Quat.V.X() +
				s.Quat.V.Y()*s.Quat.V.Y() + s.Quat.V.Z()*s.Quat.V.Z())
			So(n, ShouldAlmostEqual, 1.0, 1e-6)
		})
	})

	Convey("A non-unit quaternion is normalized at ingestion", t, func() {
		s, err := DecodeASCII("2, 0, 0, 0")
		So(err, ShouldBeNil)
		So(s.Quat.W, ShouldAlmostEqual, 1.0, 1e-9)
	})

	Convey("Whitespace around fields is tolerated", t, func() {
		s, err := DecodeASCII("  1 ,0,  0 , 0  ")
		So(err, ShouldBeNil)
		So(s.Quat.W, ShouldAlmostEqual, 1.0, 1e-9)
	})

	Convey("The wrong field count fails", t, func() {
		_, err := DecodeASCII("1, 0, 0")
		So(errors.Is(err, ErrFieldCount), ShouldBeTrue)

		_, err = DecodeASCII("1, 0, 0, 0, 0")
		So(errors.Is(err, ErrFieldCount), ShouldBeTrue)
	})

	Convey("A non-numeric field fails", t, func() {
		_, err := DecodeASCII("1, 0, abc, 0")
		So(errors.Is(err, ErrBadFloat), ShouldBeTrue)
	})

	Convey("A zero-norm quaternion is rejected", t, func() {
		_, err := DecodeASCII("0, 0, 0, 0")
		So(errors.Is(err, ErrZeroNorm), ShouldBeTrue)
	})
}

func TestASCIIDecoder(t *testing.T) {
	Convey("Invalid UTF-8 is surfaced as a decode failure", t, func() {
		_, err := ASCIIDecoder{}.Decode([]byte{0xff, 0xfe, '1', ',', '0'})
		So(errors.Is(err, ErrBadEncoding), ShouldBeTrue)
	})

	Convey("Valid bytes go through the CSV parser", t, func() {
		s, err := ASCIIDecoder{}.Decode([]byte("1, 0, 0, 0"))
		So(err, ShouldBeNil)
		So(s.Quat.W, ShouldAlmostEqual, 1.0, 1e-9)
	})
}

func TestDecodeBinary(t *testing.T) {
	dec := BinaryDecoder{MaxSourceID: 255}

	Convey("An encoded packet round-trips", t, func() {
		pkt := EncodeBinary(7, 0.5, 0.5, 0.5, 0.5)
		So(len(pkt), ShouldEqual, BinaryPacketSize)

		s, err := dec.Decode(pkt)
		So(err, ShouldBeNil)
		So(s.SourceID, ShouldEqual, 7)
		So(s.Quat.W, ShouldAlmostEqual, 0.5, 1e-6)
		So(s.Quat.X(), ShouldAlmostEqual, 0.5, 1e-6)
		So(s.Quat.Y(), ShouldAlmostEqual, 0.5, 1e-6)
		So(s.Quat.Z(), ShouldAlmostEqual, 0.5, 1e-6)
	})

	Convey("Any length other than 17 bytes fails without panicking", t, func() {
		for _, n := range []int{0, 1, 16, 18, 64, 1024} {
			_, err := dec.Decode(make([]byte, n))
			So(errors.Is(err, ErrBadLength), ShouldBeTrue)
		}
	})

	Convey("A zero-norm payload is rejected with the id in the message", t, func() {
		pkt := EncodeBinary(2, 0, 0, 0, 0)
		_, err := dec.Decode(pkt)
		So(errors.Is(err, ErrZeroNorm), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "id 2")
	})

	Convey("Ids above the configured maximum are rejected", t, func() {
		bounded := BinaryDecoder{MaxSourceID: 7}
		pkt := EncodeBinary(9, 1, 0, 0, 0)
		_, err := bounded.Decode(pkt)
		So(errors.Is(err, ErrSourceRange), ShouldBeTrue)

		Convey("but a negative maximum disables the check", func() {
			open := BinaryDecoder{MaxSourceID: -1}
			s, err := open.Decode(pkt)
			So(err, ShouldBeNil)
			So(s.SourceID, ShouldEqual, 9)
		})
	})

	Convey("The encoding is little-endian with the id first", t, func() {
		pkt := EncodeBinary(1, 1, 0, 0, 0)
		So(pkt[0], ShouldEqual, 1)
		// float32(1.0) little-endian: 00 00 80 3f
		So(pkt[1], ShouldEqual, 0x00)
		So(pkt[2], ShouldEqual, 0x00)
		So(pkt[3], ShouldEqual, 0x80)
		So(pkt[4], ShouldEqual, 0x3f)
	})
}
