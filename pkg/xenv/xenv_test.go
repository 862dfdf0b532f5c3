package xenv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYaml = `
log:
  level: warn
executor:
  min_threads: 2
  max_threads: 4
  steal: round_robin
  park_timeout: 5ms
scheduler:
  name: test
  policy: priority
  max_actors: 10
mailbox:
  kind: bounded
  capacity: 16
  overflow: block
  block_timeout: 50ms
loop:
  message_timeout: 200ms
  max_retries: 1
`

func writeConfig(t *testing.T, dir, content string) string {
	path := filepath.Join(dir, "vela.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	opts, err := cfg.SchedulerOptions()
	require.NoError(t, err)
	assert.Equal(t, xscheduler.Fair, opts.Policy)
	assert.Equal(t, xmailbox.Unbounded, opts.Mailbox.Kind)
	assert.Equal(t, xexecutor.StealRandom, opts.Executor.Steal)
	assert.Equal(t, "vela", opts.Loop.System)
}

func TestLoadYaml(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testYaml)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	// 未配置的字段保留默认值
	assert.True(t, cfg.Log.Stdout)
	assert.Equal(t, time.Second, cfg.Loop.MaxBackoff)

	opts, err := cfg.SchedulerOptions()
	require.NoError(t, err)
	assert.Equal(t, "test", opts.Name)
	assert.Equal(t, xscheduler.Priority, opts.Policy)
	assert.Equal(t, 10, opts.MaxActors)
	assert.Equal(t, 2, opts.Executor.MinThreads)
	assert.Equal(t, 4, opts.Executor.MaxThreads)
	assert.Equal(t, xexecutor.StealRoundRobin, opts.Executor.Steal)
	assert.Equal(t, 5*time.Millisecond, opts.Executor.ParkTimeout)
	assert.Equal(t, xmailbox.Bounded, opts.Mailbox.Kind)
	assert.Equal(t, 16, opts.Mailbox.Capacity)
	assert.Equal(t, xmailbox.Block, opts.Mailbox.Overflow)
	assert.Equal(t, 50*time.Millisecond, opts.Mailbox.BlockTimeout)
	assert.Equal(t, 200*time.Millisecond, opts.Loop.MessageTimeout)
	assert.Equal(t, 1, opts.Loop.MaxRetries)
	assert.Equal(t, "test", opts.Loop.System)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testYaml)
	t.Setenv("VELA_LOG_LEVEL", "debug")
	t.Setenv("VELA_EXECUTOR_MAX_THREADS", "8")
	t.Setenv("VELA_SCHEDULER_POLICY", "fifo")
	t.Setenv("VELA_LOOP_MESSAGE_TIMEOUT", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Executor.MaxThreads)
	assert.Equal(t, "fifo", cfg.Scheduler.Policy)
	assert.Equal(t, time.Second, cfg.Loop.MessageTimeout)
	// 环境变量未设置的字段保持yaml中的值
	assert.Equal(t, 2, cfg.Executor.MinThreads)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("VELA_MONITOR_ENABLE", "true")
	t.Setenv("VELA_MONITOR_ADDR", "127.0.0.1:0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Monitor.Enable)
	assert.Equal(t, "127.0.0.1:0", cfg.Monitor.Addr)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, dir, "log: [oops"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, dir, "scheduler:\n  policy: lottery\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, dir, "mailbox:\n  kind: bounded\n  capacity: 0\n"))
	assert.ErrorIs(t, err, xmailbox.ErrInvalidOptions)

	_, err = Load(writeConfig(t, dir, "executor:\n  min_threads: 4\n  max_threads: 2\n"))
	assert.ErrorIs(t, err, xexecutor.ErrInvalidOptions)

	_, err = Load(writeConfig(t, dir, "log:\n  level: loud\n"))
	assert.Error(t, err)

	t.Setenv("VELA_EXECUTOR_MIN_THREADS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, func(_ context.Context, cfg *Config) {
		reloaded <- cfg
	}))

	// 非法内容不会触发回调
	writeConfig(t, dir, "log:\n  level: loud\n")
	select {
	case <-reloaded:
		t.Fatal("invalid config reloaded")
	case <-time.After(3 * watchDebounce):
	}

	writeConfig(t, dir, "log:\n  level: error\n")
	select {
	case cfg := <-reloaded:
		assert.Equal(t, "error", cfg.Log.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("config not reloaded")
	}

	// 目录下其他文件的变化被忽略
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644))
	select {
	case <-reloaded:
		t.Fatal("unrelated file reloaded")
	case <-time.After(3 * watchDebounce):
	}
}

func TestWatchInvalid(t *testing.T) {
	noop := func(context.Context, *Config) {}
	assert.Error(t, Watch(context.Background(), "", noop))
	assert.Error(t, Watch(context.Background(), filepath.Join(t.TempDir(), "nodir", "vela.yaml"), noop))
}
