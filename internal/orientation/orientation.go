package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// NormEpsilon is the smallest quaternion norm we accept. Anything at or
// below this has no well-defined rotation axis and is rejected at ingestion.
const NormEpsilon = 1e-6

// Pose is the canonical Euler-angle representation of orientation for your app.
// All angles are in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Sample is one decoded orientation update: which IMU it came from and
// its unit quaternion.
type Sample struct {
	SourceID uint8
	Quat     mgl64.Quat
}

// FromComponents builds a unit quaternion from raw (w, x, y, z) components.
// The second return value is false when the norm is at or below NormEpsilon
// (or is not finite); callers must treat that as a decode failure.
// Normalization happens here, once, so everything downstream can assume
// unit norm.
func FromComponents(w, x, y, z float64) (mgl64.Quat, bool) {
	norm := math.Sqrt(w*w + x*x + y*y + z*z)
	if math.IsNaN(norm) || math.IsInf(norm, 0) || norm <= NormEpsilon {
		return mgl64.QuatIdent(), false
	}
	return mgl64.Quat{
		W: w / norm,
		V: mgl64.Vec3{x / norm, y / norm, z / norm},
	}, true
}

// PoseFromQuat converts a unit quaternion to roll/pitch/yaw in degrees.
//
// Standard aerospace sequence:
//
//	roll  = atan2(2(wx + yz), 1 - 2(x² + y²))
//	pitch = asin(2(wy - zx)), clamped to ±90° at the gimbal-lock singularity
//	yaw   = atan2(2(wz + xy), 1 - 2(y² + z²))
func PoseFromQuat(q mgl64.Quat) Pose {
	w, x, y, z := q.W, q.X(), q.Y(), q.Z()

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) < 1 {
		pitch = math.Asin(sinp)
	} else {
		pitch = math.Copysign(math.Pi/2, sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return Pose{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
		Yaw:   yaw * 180.0 / math.Pi,
	}
}
