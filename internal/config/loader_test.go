package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/flok/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"FLOK_CONFIG", "FLOK_ADDR", "FLOK_QUEUE_SIZE", "FLOK_WORKER_COUNT",
	"FLOK_DECAY_TAU_HOURS", "FLOK_LIQUIDITY_K", "FLOK_SOLVER", "FLOK_MODEL_PATH",
	"FLOK_SCARCITY_LAMBDA", "FLOK_LOG_FORMAT",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	f, err := os.CreateTemp(t.TempDir(), "flok-*.yaml")
	if err != nil {
		t.Fatalf("create temp config: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DecayTau(), convey.ShouldEqual, 12*time.Hour)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FLOK_ADDR", ":8080")
			_ = os.Setenv("FLOK_QUEUE_SIZE", "500")
			_ = os.Setenv("FLOK_DECAY_TAU_HOURS", "6")
			_ = os.Setenv("FLOK_LIQUIDITY_K", "2.5")
			_ = os.Setenv("FLOK_SOLVER", "Greedy")
			_ = os.Setenv("FLOK_MODEL_PATH", "/etc/flok/rsvp.json")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.DecayTau(), convey.ShouldEqual, 6*time.Hour)
				convey.So(cfg.LiquidityK, convey.ShouldEqual, 2.5)
				convey.So(cfg.Solver, convey.ShouldEqual, config.SolverGreedy)
				convey.So(cfg.ModelPath, convey.ShouldEqual, "/etc/flok/rsvp.json")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := createTempConfigFile(t, `
addr: ":9090"
worker_count: 3
scarcity_lambda: 0.25
log_format: json
`)
			_ = os.Setenv("FLOK_CONFIG", path)

			convey.Convey("Then it should load from the file", func() {
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.ScarcityLambda, convey.ShouldEqual, 0.25)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})

			convey.Convey("Then env should win over the file", func() {
				_ = os.Setenv("FLOK_SCARCITY_LAMBDA", "2")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ScarcityLambda, convey.ShouldEqual, 2)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("FLOK_CONFIG", "/nonexistent/flok.yaml")
			_, err := config.Load(ctx)

			convey.Convey("Then it should fail to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value is invalid", func() {
			_ = os.Setenv("FLOK_SOLVER", "simplex")
			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
