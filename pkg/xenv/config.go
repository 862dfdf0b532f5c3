// Package xenv 运行时配置
// 加载顺序: 默认值 -> yaml文件(可选) -> 环境变量(VELA_前缀) -> 校验
package xenv

import (
	"os"
	"runtime"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xactor"
	"github.com/camilohaze/vela-sub010/pkg/xexecutor"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/camilohaze/vela-sub010/pkg/xmailbox"
	"github.com/camilohaze/vela-sub010/pkg/xscheduler"
	"github.com/caarlos0/env/v8"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	JSON   bool   `yaml:"json" env:"JSON"`
	Stdout bool   `yaml:"stdout" env:"STDOUT"`
}

type ExecutorConfig struct {
	MinThreads       int           `yaml:"min_threads" env:"MIN_THREADS"`
	MaxThreads       int           `yaml:"max_threads" env:"MAX_THREADS"`
	GlobalQueueSize  int           `yaml:"global_queue_size" env:"GLOBAL_QUEUE_SIZE"`
	ScaleUpThreshold int           `yaml:"scale_up_threshold" env:"SCALE_UP_THRESHOLD"`
	KeepAlive        time.Duration `yaml:"keep_alive" env:"KEEP_ALIVE"`
	ParkTimeout      time.Duration `yaml:"park_timeout" env:"PARK_TIMEOUT"`
	Steal            string        `yaml:"steal" env:"STEAL"`
}

type SchedulerConfig struct {
	Name            string        `yaml:"name" env:"NAME"`
	Policy          string        `yaml:"policy" env:"POLICY"`
	MaxActors       int           `yaml:"max_actors" env:"MAX_ACTORS"`
	Quantum         int           `yaml:"quantum" env:"QUANTUM"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type MailboxConfig struct {
	Kind         string        `yaml:"kind" env:"KIND"`
	Capacity     int           `yaml:"capacity" env:"CAPACITY"`
	Overflow     string        `yaml:"overflow" env:"OVERFLOW"`
	BlockTimeout time.Duration `yaml:"block_timeout" env:"BLOCK_TIMEOUT"`
}

type LoopConfig struct {
	MessageTimeout time.Duration `yaml:"message_timeout" env:"MESSAGE_TIMEOUT"`
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBackoff   time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	MaxRestarts    int           `yaml:"max_restarts" env:"MAX_RESTARTS"`
	RestartWindow  time.Duration `yaml:"restart_window" env:"RESTART_WINDOW"`
}

type MonitorConfig struct {
	Enable   bool          `yaml:"enable" env:"ENABLE"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type Config struct {
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Executor  ExecutorConfig  `yaml:"executor" envPrefix:"EXECUTOR_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Mailbox   MailboxConfig   `yaml:"mailbox" envPrefix:"MAILBOX_"`
	Loop      LoopConfig      `yaml:"loop" envPrefix:"LOOP_"`
	Monitor   MonitorConfig   `yaml:"monitor" envPrefix:"MONITOR_"`
}

// 环境变量前缀, 嵌套结构按envPrefix拼接, 如 VELA_EXECUTOR_MAX_THREADS
const EnvPrefix = "VELA_"

// 只覆盖已设置的环境变量
func EnvLoad(conf interface{}) error {
	return env.ParseWithOptions(conf, env.Options{Prefix: EnvPrefix})
}

// 默认值不使用envDefault, 否则会覆盖yaml中的配置
func Default() *Config {
	n := runtime.NumCPU()
	return &Config{
		Log: LogConfig{Level: "info", Stdout: true},
		Executor: ExecutorConfig{
			MinThreads:       n,
			MaxThreads:       n * 2,
			ScaleUpThreshold: 64,
			KeepAlive:        30 * time.Second,
			ParkTimeout:      10 * time.Millisecond,
			Steal:            "random",
		},
		Scheduler: SchedulerConfig{
			Name:            "vela",
			Policy:          "fair",
			Quantum:         8,
			ShutdownTimeout: 10 * time.Second,
		},
		Mailbox: MailboxConfig{Kind: "unbounded", Overflow: "reject"},
		Loop: LoopConfig{
			MaxRetries:    3,
			RetryBackoff:  10 * time.Millisecond,
			MaxBackoff:    time.Second,
			RestartWindow: time.Minute,
		},
		Monitor: MonitorConfig{Addr: "127.0.0.1:9090", Interval: time.Second},
	}
}

// path为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := EnvLoad(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := c.SchedulerOptions(); err != nil {
		return err
	}
	if c.Scheduler.ShutdownTimeout <= 0 {
		return errors.Errorf("scheduler shutdown timeout %v", c.Scheduler.ShutdownTimeout)
	}
	if c.Monitor.Enable && c.Monitor.Addr == "" {
		return errors.New("monitor enabled without addr")
	}
	return nil
}

func (c *Config) LogOptions() xlog.Options {
	return xlog.Options{Level: c.Log.Level, JSON: c.Log.JSON, Stdout: c.Log.Stdout}
}

func (c *Config) ExecutorOptions() (xexecutor.Options, error) {
	steal, err := xexecutor.ParseStealStrategy(c.Executor.Steal)
	if err != nil {
		return xexecutor.Options{}, err
	}
	opts := xexecutor.Options{
		MinThreads:       c.Executor.MinThreads,
		MaxThreads:       c.Executor.MaxThreads,
		GlobalQueueSize:  c.Executor.GlobalQueueSize,
		ScaleUpThreshold: c.Executor.ScaleUpThreshold,
		KeepAlive:        c.Executor.KeepAlive,
		ParkTimeout:      c.Executor.ParkTimeout,
		Steal:            steal,
	}
	return opts, opts.Validate()
}

func (c *Config) MailboxOptions() (xmailbox.Options, error) {
	kind, err := xmailbox.ParseKind(c.Mailbox.Kind)
	if err != nil {
		return xmailbox.Options{}, err
	}
	overflow, err := xmailbox.ParseOverflow(c.Mailbox.Overflow)
	if err != nil {
		return xmailbox.Options{}, err
	}
	opts := xmailbox.Options{
		Kind:         kind,
		Capacity:     c.Mailbox.Capacity,
		Overflow:     overflow,
		BlockTimeout: c.Mailbox.BlockTimeout,
	}
	return opts, opts.Validate()
}

func (c *Config) LoopOptions() xactor.LoopOptions {
	lo := xactor.DefaultLoopOptions()
	lo.System = c.Scheduler.Name
	lo.MessageTimeout = c.Loop.MessageTimeout
	lo.MaxRetries = c.Loop.MaxRetries
	lo.RetryBackoff = c.Loop.RetryBackoff
	lo.MaxBackoff = c.Loop.MaxBackoff
	lo.MaxRestarts = c.Loop.MaxRestarts
	lo.RestartWindow = c.Loop.RestartWindow
	return lo
}

func (c *Config) SchedulerOptions() (xscheduler.Options, error) {
	policy, err := xscheduler.ParsePolicy(c.Scheduler.Policy)
	if err != nil {
		return xscheduler.Options{}, err
	}
	exec, err := c.ExecutorOptions()
	if err != nil {
		return xscheduler.Options{}, err
	}
	mb, err := c.MailboxOptions()
	if err != nil {
		return xscheduler.Options{}, err
	}
	opts := xscheduler.Options{
		Name:      c.Scheduler.Name,
		Policy:    policy,
		MaxActors: c.Scheduler.MaxActors,
		Quantum:   c.Scheduler.Quantum,
		Executor:  exec,
		Mailbox:   mb,
		Loop:      c.LoopOptions(),
	}
	return opts, opts.Validate()
}
