package xlog

import (
	"time"

	"go.uber.org/zap"
)

// 日志字段名, 与ECS对齐
const (
	FieldTimestamp = "@timestamp"
	FieldActor     = "actor"
	FieldWorker    = "worker"
	FieldTask      = "task"
	FieldState     = "state"
	FieldCost      = "cost"
)

func Actor(name string) zap.Field { return zap.String(FieldActor, name) }

func Worker(id int) zap.Field { return zap.Int(FieldWorker, id) }

func Task(name string) zap.Field { return zap.String(FieldTask, name) }

func State(s interface{ String() string }) zap.Field { return zap.Stringer(FieldState, s) }

func Cost(d time.Duration) zap.Field { return zap.Duration(FieldCost, d) }
