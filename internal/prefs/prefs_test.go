package prefs

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/relabs-tech/imu_visualiser/internal/rawlog"
)

func TestPreferences(t *testing.T) {
	Convey("Preferences persistence", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "preferences.json")

		Convey("a missing file yields defaults", func() {
			p := Load(path)
			So(p, ShouldResemble, Default())
		})

		Convey("a corrupt file yields defaults", func() {
			So(os.WriteFile(path, []byte("{not json"), 0o644), ShouldBeNil)
			p := Load(path)
			So(p, ShouldResemble, Default())
		})

		Convey("Save then Load round-trips", func() {
			want := Preferences{
				LastMode: "udp",
				LastBaud: 230400,
				Logger: rawlog.Settings{
					MaxLines:   250,
					ParsedOnly: true,
					Timestamps: true,
				},
			}
			So(Save(path, want), ShouldBeNil)
			So(Load(path), ShouldResemble, want)
		})

		Convey("a zero saved baud falls back to the default", func() {
			So(os.WriteFile(path, []byte(`{"last_mode":"udp","last_baud":0}`), 0o644), ShouldBeNil)
			p := Load(path)
			So(p.LastMode, ShouldEqual, "udp")
			So(p.LastBaud, ShouldEqual, Default().LastBaud)
		})
	})
}
