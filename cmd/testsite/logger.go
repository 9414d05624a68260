package main

import (
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var BuiltVersion = "dev"

func getLogger(config *viper.Viper) *zap.Logger {
	var logger *zap.Logger
	var err error

	var level zapcore.Level = zap.InfoLevel
	switch config.GetString("log-level") {
	case "debug":
		level = zap.DebugLevel
	case "error", "err":
		level = zap.ErrorLevel
	case "warning", "warn":
		level = zap.WarnLevel
	}
	fields := []zap.Field{
		zap.String("version", BuiltVersion),
		zap.Time("started_at", time.Now()),
	}
	if hostname, err := os.Hostname(); err == nil {
		fields = append(fields, zap.String("hostname", hostname))
	}
	opts := []zap.Option{
		zap.Fields(fields...),
	}
	if config.GetBool("fancy-logs") {
		logger = fancyLogger(zapcore.AddSync(colorable.NewColorableStdout()), level, opts...)
		logger.Debug("started debug logger")
	} else {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		logger, err = config.Build(opts...)
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func fancyLogger(out zapcore.WriteSyncer, level zapcore.Level, opts ...zap.Option) *zap.Logger {
	config := zap.NewDevelopmentEncoderConfig()
	config.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(time.Kitchen))
	}
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(config),
		out,
		level,
	), opts...)
}
