package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Log = zap.NewNop()

// Init replaces the global logger with a console logger. Debug enables the
// development encoder and debug level.
func Init(debug bool) {
	Log = zap.New(newCore(zapcore.AddSync(os.Stderr), debug))
}

// InitWithFile tees console output into a size-rotated log file, used by the
// daemon which usually runs without a terminal attached.
func InitWithFile(debug bool, path string) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}

	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	fileCore := zapcore.NewCore(fileEncoder, zapcore.AddSync(rotator), level(debug))

	Log = zap.New(zapcore.NewTee(newCore(zapcore.AddSync(os.Stderr), debug), fileCore))
}

func Sync() {
	_ = Log.Sync()
}

func newCore(ws zapcore.WriteSyncer, debug bool) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	if debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, level(debug))
}

func level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
