package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadService(t *testing.T) {
	Convey("Given a service config file", t, func() {
		path := filepath.Join(t.TempDir(), "bizrank.yaml")
		content := "pipeline_file: pipeline.yaml\nredis_addr: localhost:6379\nevent_ttl_seconds: 60\n"
		So(os.WriteFile(path, []byte(content), 0o644), ShouldBeNil)

		Convey("When loading without overrides", func() {
			cfg, err := LoadService(path)

			Convey("Then file values override defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.PipelineFile, ShouldEqual, "pipeline.yaml")
				So(cfg.RedisAddr, ShouldEqual, "localhost:6379")
				So(cfg.EventTTLSeconds, ShouldEqual, 60)
				So(cfg.LogLevel, ShouldEqual, "info")
				So(cfg.APISource, ShouldEqual, "/ranking")
			})
		})

		Convey("When environment variables are set", func() {
			t.Setenv("BIZRANK_LOG_LEVEL", "debug")
			t.Setenv("BIZRANK_REDIS_DB", "3")
			cfg, err := LoadService(path)

			Convey("Then they take precedence", func() {
				So(err, ShouldBeNil)
				So(cfg.LogLevel, ShouldEqual, "debug")
				So(cfg.RedisDB, ShouldEqual, 3)
			})
		})
	})

	Convey("Given no pipeline file anywhere", t, func() {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		So(os.WriteFile(path, []byte("log_level: warn\n"), 0o644), ShouldBeNil)
		_, err := LoadService(path)
		So(err, ShouldNotBeNil)
	})

	Convey("Given a missing config file", t, func() {
		_, err := LoadService(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}
