package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/distask/middleware"
	"github.com/xraph/distask/task"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Cluster.Name != "distask" || cfg.Member.Threads != 4 || cfg.Store.Driver != "memory" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Cluster.BroadcastTimeout != 100*time.Second {
		t.Errorf("BroadcastTimeout = %v, want 100s", cfg.Cluster.BroadcastTimeout)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distask.yaml")
	yaml := `
cluster:
  name: prod
  seeds: ["ws://10.0.0.1:7480/dwp"]
  unicast_timeout: 3s
member:
  threads: 8
store:
  driver: redis
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DISTASK_MEMBER_THREADS", "16")
	t.Setenv("DISTASK_MEMBER_NAME", "node-a")
	t.Setenv("DISTASK_AUTH_TOKEN", "s3cret")
	t.Setenv("DISTASK_AUTH_READ_TOKENS", "dash,grafana")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Cluster.Name != "prod" || len(cfg.Cluster.Seeds) != 1 {
		t.Errorf("cluster = %+v", cfg.Cluster)
	}
	if cfg.Member.Threads != 16 {
		t.Errorf("Threads = %d, want env override 16", cfg.Member.Threads)
	}

	if cfg.Member.Name != "node-a" {
		t.Errorf("Member.Name = %q, want env override node-a", cfg.Member.Name)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("Auth.Token = %q, want env override s3cret", cfg.Auth.Token)
	}
	if len(cfg.Auth.ReadTokens) != 2 || cfg.Auth.ReadTokens[1] != "grafana" {
		t.Errorf("Auth.ReadTokens = %v, want [dash grafana]", cfg.Auth.ReadTokens)
	}

	lib := cfg.coordinatorConfig()
	if lib.ClusterName != "prod" || lib.UnicastTimeout != 3*time.Second || lib.ExecutionThreads != 16 {
		t.Errorf("coordinatorConfig = %+v", lib)
	}
}

func TestLoadConfig_EnvOnlyKeys(t *testing.T) {
	t.Setenv("DISTASK_AUTH_TOKEN", "s3cret")
	t.Setenv("DISTASK_MEMBER_ADDRESS", "10.0.0.7:7480")
	t.Setenv("DISTASK_MEMBER_URL", "ws://10.0.0.7:7480/dwp")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Auth.Token != "s3cret" || cfg.Member.Address != "10.0.0.7:7480" || cfg.Member.URL != "ws://10.0.0.7:7480/dwp" {
		t.Errorf("env-only keys ignored: auth=%+v member=%+v", cfg.Auth, cfg.Member)
	}
}

func TestConfig_ReconnectStrategy(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	s, err := cfg.reconnectStrategy()
	if err != nil {
		t.Fatalf("reconnectStrategy: %v", err)
	}
	if d := s.Delay(1); d > 500*time.Millisecond {
		t.Errorf("Delay(1) = %v, want <= 500ms", d)
	}

	cfg.Cluster.Reconnect = "constant"
	cfg.Cluster.ReconnectInitial = 2 * time.Second
	s, err = cfg.reconnectStrategy()
	if err != nil {
		t.Fatalf("reconnectStrategy: %v", err)
	}
	if d := s.Delay(7); d != 2*time.Second {
		t.Errorf("constant Delay(7) = %v, want 2s", d)
	}

	cfg.Cluster.Reconnect = "sometimes"
	if _, err := cfg.reconnectStrategy(); err == nil {
		t.Error("expected error for unknown reconnect strategy")
	}
}

func TestTaskMiddleware_BoundsSimpleTasks(t *testing.T) {
	logger := newLogger(LogConfig{Level: "error"}, &bytes.Buffer{})

	if got := len(taskMiddleware(MemberConfig{}, logger)); got != 3 {
		t.Errorf("middleware without timeout = %d, want 3", got)
	}

	chain := middleware.Chain(taskMiddleware(MemberConfig{TaskTimeout: 20 * time.Millisecond}, logger)...)
	tk := task.NewSimple("demo.sleep", func(context.Context) (any, error) { return nil, nil })

	err := chain(context.Background(), tk, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn record, got %q", out)
	}
}

func TestTicker_CountsDown(t *testing.T) {
	tk := &ticker{remaining: 2, logger: newLogger(LogConfig{Level: "error"}, &bytes.Buffer{})}

	if s, _ := tk.Start(context.Background()); s.String() != "wait" {
		t.Errorf("first step = %v, want wait", s)
	}
	if s, _ := tk.Resume(context.Background()); s.String() != "complete" {
		t.Errorf("second step = %v, want complete", s)
	}
}
