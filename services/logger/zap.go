package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/cadence/core"
)

type ZapLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger builds a development logger in debug mode and a JSON production logger otherwise.
func NewZapLogger(conf *core.Config) (*ZapLogger, error) {
	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	}
	if conf.TestMode {
		zconf.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	zl, err := zconf.Build(zap.AddCallerSkip(1), zap.Fields(
		zap.String("app", conf.AppName),
		zap.String("env", conf.Env),
		zap.String("build", conf.Build),
	))
	if err != nil {
		return nil, err
	}
	return &ZapLogger{zl: zl}, nil
}

// WrapZap turns any zap logger (e.g. an observer in tests) into a core.Logger.
func WrapZap(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zl: zl}
}

// Zap exposes the underlying logger, for libraries that take one directly.
func (l ZapLogger) Zap() *zap.Logger {
	return l.zl
}

// fields converts the core.Logger args: errors become "error" fields, maps are flattened.
func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			flds = append(flds, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				flds = append(flds, zap.Any(k, v))
			}
		case zapcore.Field:
			flds = append(flds, a)
		default:
			flds = append(flds, zap.Any("extra", a))
		}
	}
	return flds
}

func (l ZapLogger) Debug(msg string, args ...interface{}) { l.zl.Debug(msg, fields(args)...) }
func (l ZapLogger) Info(msg string, args ...interface{})  { l.zl.Info(msg, fields(args)...) }
func (l ZapLogger) Warn(msg string, args ...interface{})  { l.zl.Warn(msg, fields(args)...) }
func (l ZapLogger) Error(msg string, args ...interface{}) { l.zl.Error(msg, fields(args)...) }
func (l ZapLogger) Fatal(msg string, args ...interface{}) { l.zl.Fatal(msg, fields(args)...) }
func (l ZapLogger) Sync() error                           { return l.zl.Sync() }
