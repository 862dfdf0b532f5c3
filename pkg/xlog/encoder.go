package xlog

import (
	"fmt"

	"go.elastic.co/ecszap"
	"go.uber.org/zap/zapcore"
)

// 终端前景色
type termColor uint8

const (
	colorRed     termColor = 31
	colorYellow  termColor = 33
	colorBlue    termColor = 34
	colorMagenta termColor = 35
)

func (c termColor) wrap(s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", uint8(c), s)
}

type levelStyle struct {
	name  string
	color termColor
}

var levelStyles = map[zapcore.Level]levelStyle{
	zapcore.DebugLevel:  {"DEBUG", colorMagenta},
	zapcore.InfoLevel:   {"INFO", colorBlue},
	zapcore.WarnLevel:   {"WARN", colorYellow},
	zapcore.ErrorLevel:  {"ERROR", colorRed},
	zapcore.DPanicLevel: {"DPANIC", colorRed},
	zapcore.PanicLevel:  {"PANIC", colorRed},
	zapcore.FatalLevel:  {"FATAL", colorRed},
}

func levelEncoder(withColor bool) zapcore.LevelEncoder {
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		style, ok := levelStyles[l]
		if !ok {
			style = levelStyle{fmt.Sprintf("LEVEL(%d)", l), colorRed}
		}
		if withColor {
			enc.AppendString(style.color.wrap(style.name))
			return
		}
		enc.AppendString(style.name)
	}
}

// json: ECS格式, 便于日志被ELK归档; 否则带颜色的终端格式
func newEncoder(json bool) zapcore.Encoder {
	config := ecszap.EncoderConfig{
		EnableName:       true,
		EncodeName:       zapcore.FullNameEncoder,
		EnableStackTrace: true,
		EnableCaller:     true,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder(!json),
		EncodeDuration:   zapcore.StringDurationEncoder,
	}.ToZapCoreEncoderConfig()
	config.TimeKey = FieldTimestamp
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	if json {
		return zapcore.NewJSONEncoder(config)
	}
	return zapcore.NewConsoleEncoder(config)
}
