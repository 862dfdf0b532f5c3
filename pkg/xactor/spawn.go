package xactor

import "github.com/camilohaze/vela-sub010/pkg/xmailbox"

// spawn参数
type SpawnConfig struct {
	Name     string
	Priority int
	Mailbox  *xmailbox.Options
	Loop     []func(*LoopOptions)
}

type SpawnOption func(*SpawnConfig)

// 不指定则生成"{Type}-{n}"
func WithName(name string) SpawnOption {
	return func(c *SpawnConfig) { c.Name = name }
}

func WithPriority(priority int) SpawnOption {
	return func(c *SpawnConfig) { c.Priority = priority }
}

func WithMailbox(opts xmailbox.Options) SpawnOption {
	return func(c *SpawnConfig) { c.Mailbox = &opts }
}

func WithLoopOptions(fn func(*LoopOptions)) SpawnOption {
	return func(c *SpawnConfig) { c.Loop = append(c.Loop, fn) }
}

func NewSpawnConfig(opts ...SpawnOption) SpawnConfig {
	var c SpawnConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
