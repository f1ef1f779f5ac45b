// Package wire decodes raw transport records into orientation samples.
//
// Two formats are supported, selected by which transport is active:
//
//   - ASCII: one UTF-8 text line of 4 comma-separated floats (w, x, y, z),
//     implicitly addressed to source id 0. Used over serial.
//   - Binary: a fixed 17-byte little-endian record, uint8 source id followed
//     by four IEEE-754 float32s. Used over UDP.
//
// Decode failures are per-record data-quality events, never fatal: the
// caller logs them and leaves the registry untouched.
package wire

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/relabs-tech/imu_visualiser/internal/orientation"
)

const (
	// BinaryPacketSize is the exact length of one binary record:
	// 1 byte source id + 4 little-endian float32 components.
	BinaryPacketSize = 1 + 4*4

	// ASCIISourceID is the implicit source id of the single-stream
	// ASCII protocol.
	ASCIISourceID = 0
)

// Sentinel decode failures. Wrapped with per-record context via
// errors.Wrapf; match with errors.Is.
var (
	ErrBadLength   = errors.New("wire: binary packet is not 17 bytes")
	ErrFieldCount  = errors.New("wire: expected 4 comma-separated fields")
	ErrBadFloat    = errors.New("wire: field is not a number")
	ErrZeroNorm    = errors.New("wire: quaternion norm below epsilon")
	ErrBadEncoding = errors.New("wire: record is not valid UTF-8")
	ErrSourceRange = errors.New("wire: source id above configured maximum")
)

// Decoder converts one raw transport record into an orientation sample.
// Exactly one decoder is active per connection; the format follows the
// transport, it is never auto-detected from the bytes.
type Decoder interface {
	Decode(record []byte) (orientation.Sample, error)
}

// ASCIIDecoder decodes newline-framed CSV quaternion records.
type ASCIIDecoder struct{}

func (ASCIIDecoder) Decode(record []byte) (orientation.Sample, error) {
	if !utf8.Valid(record) {
		return orientation.Sample{}, ErrBadEncoding
	}
	return DecodeASCII(string(record))
}

// DecodeASCII parses one text record of 4 comma-separated floats with
// optional surrounding whitespace per field. On success the quaternion is
// normalized and attributed to source id 0.
func DecodeASCII(line string) (orientation.Sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return orientation.Sample{}, errors.Wrapf(ErrFieldCount, "got %d", len(parts))
	}

	var comp [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orientation.Sample{}, errors.Wrapf(ErrBadFloat, "field %d %q", i, strings.TrimSpace(p))
		}
		comp[i] = v
	}

	q, ok := orientation.FromComponents(comp[0], comp[1], comp[2], comp[3])
	if !ok {
		return orientation.Sample{}, ErrZeroNorm
	}
	return orientation.Sample{SourceID: ASCIISourceID, Quat: q}, nil
}

// BinaryDecoder decodes fixed-width binary records. MaxSourceID bounds the
// id space: records with a higher id are rejected as decode failures rather
// than silently registering a new source. A negative MaxSourceID disables
// the check (any uint8 id is accepted).
type BinaryDecoder struct {
	MaxSourceID int
}

func (d BinaryDecoder) Decode(record []byte) (orientation.Sample, error) {
	if len(record) != BinaryPacketSize {
		return orientation.Sample{}, errors.Wrapf(ErrBadLength, "got %d bytes", len(record))
	}

	id := record[0]
	if d.MaxSourceID >= 0 && int(id) > d.MaxSourceID {
		return orientation.Sample{}, errors.Wrapf(ErrSourceRange, "id %d, maximum %d", id, d.MaxSourceID)
	}

	w := float64(math.Float32frombits(binary.LittleEndian.Uint32(record[1:5])))
	x := float64(math.Float32frombits(binary.LittleEndian.Uint32(record[5:9])))
	y := float64(math.Float32frombits(binary.LittleEndian.Uint32(record[9:13])))
	z := float64(math.Float32frombits(binary.LittleEndian.Uint32(record[13:17])))

	q, ok := orientation.FromComponents(w, x, y, z)
	if !ok {
		return orientation.Sample{}, errors.Wrapf(ErrZeroNorm, "id %d", id)
	}
	return orientation.Sample{SourceID: id, Quat: q}, nil
}

// EncodeBinary packs one binary record. The test sender uses this; the
// components are truncated to float32 exactly as a device firmware would
// send them.
func EncodeBinary(id uint8, w, x, y, z float64) []byte {
	buf := make([]byte, BinaryPacketSize)
	buf[0] = id
	binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(float32(w)))
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(float32(x)))
	binary.LittleEndian.PutUint32(buf[9:13], math.Float32bits(float32(y)))
	binary.LittleEndian.PutUint32(buf[13:17], math.Float32bits(float32(z)))
	return buf
}
