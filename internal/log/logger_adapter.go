package log

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// LoggerConfig is the process-level logging configuration, loaded by
// internal/config from the "log" key of the process config file.
type LoggerConfig struct {
	Level     string           `yaml:"level" mapstructure:"level"`
	Pattern   string           `yaml:"pattern" mapstructure:"pattern"`
	Time      string           `yaml:"time" mapstructure:"time"`
	Appenders []AppenderConfig `yaml:"appenders" mapstructure:"appenders"`
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func initByConfig(cfg *LoggerConfig) error {
	l := logrus.New()
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "%time [%level] %field %msg"
	}
	timeLayout := cfg.Time
	if timeLayout == "" {
		timeLayout = "2006-01-02T15:04:05.000Z07:00"
	}
	l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	mw := NewMultiWriter()
	if len(cfg.Appenders) == 0 {
		mw.Add(os.Stdout)
	}
	for _, a := range cfg.Appenders {
		switch a.Type {
		case "console", "stdout", "":
			mw.Add(os.Stdout)
		case "file":
			opt, err := decodeFileAppenderOpt(a.Options)
			if err != nil {
				return fmt.Errorf("log: file appender: %w", err)
			}
			mw.AddFileAppender(opt)
		case "kafka":
			opt, err := decodeKafkaAppenderOpt(a.Options)
			if err != nil {
				return fmt.Errorf("log: kafka appender: %w", err)
			}
			mw.AddKafkaAppender(opt)
		default:
			return fmt.Errorf("log: unknown appender type %q", a.Type)
		}
	}
	l.SetOutput(mw)

	logger = &logrusAdapter{entry: logrus.NewEntry(l)}
	return nil
}

func decodeFileAppenderOpt(opts map[string]interface{}) (FileAppenderOpt, error) {
	var out FileAppenderOpt
	err := mapstructure.Decode(opts, &out)
	return out, err
}

func decodeKafkaAppenderOpt(opts map[string]interface{}) (KafkaAppenderOpt, error) {
	var out KafkaAppenderOpt
	err := mapstructure.Decode(opts, &out)
	return out, err
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
