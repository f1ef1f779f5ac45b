package orientation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromComponents(t *testing.T) {
	Convey("A non-unit quaternion is normalized", t, func() {
		q, ok := FromComponents(2, 0, 0, 0)
		So(ok, ShouldBeTrue)
		So(q.W, ShouldAlmostEqual, 1.0, 1e-9)
		So(q.Len(), ShouldAlmostEqual, 1.0, 1e-9)
	})

	Convey("An already-unit quaternion keeps its direction", t, func() {
		q, ok := FromComponents(0.7071, 0, 0.7071, 0)
		So(ok, ShouldBeTrue)
		So(q.W, ShouldAlmostEqual, math.Sqrt2/2, 1e-4)
		So(q.Y(), ShouldAlmostEqual, math.Sqrt2/2, 1e-4)
	})

	Convey("Norm at or below epsilon is rejected", t, func() {
		_, ok := FromComponents(0, 0, 0, 0)
		So(ok, ShouldBeFalse)

		_, ok = FromComponents(1e-7, 0, 0, 0)
		So(ok, ShouldBeFalse)
	})

	Convey("Non-finite components are rejected", t, func() {
		_, ok := FromComponents(math.NaN(), 0, 0, 0)
		So(ok, ShouldBeFalse)

		_, ok = FromComponents(math.Inf(1), 0, 0, 0)
		So(ok, ShouldBeFalse)
	})
}

func TestPoseFromQuat(t *testing.T) {
	Convey("The identity quaternion is zero attitude", t, func() {
		p := PoseFromQuat(mgl64.QuatIdent())
		So(p.Roll, ShouldAlmostEqual, 0, 1e-9)
		So(p.Pitch, ShouldAlmostEqual, 0, 1e-9)
		So(p.Yaw, ShouldAlmostEqual, 0, 1e-9)
	})

	Convey("A 90 degree rotation about Z is pure yaw", t, func() {
		q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
		p := PoseFromQuat(q)
		So(p.Yaw, ShouldAlmostEqual, 90, 1e-6)
		So(p.Roll, ShouldAlmostEqual, 0, 1e-6)
		So(p.Pitch, ShouldAlmostEqual, 0, 1e-6)
	})

	Convey("A 45 degree rotation about X is pure roll", t, func() {
		q := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0})
		p := PoseFromQuat(q)
		So(p.Roll, ShouldAlmostEqual, 45, 1e-6)
	})

	Convey("Pitch clamps at the gimbal-lock singularity", t, func() {
		q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
		p := PoseFromQuat(q)
		So(p.Pitch, ShouldAlmostEqual, 90, 1e-6)
	})
}
