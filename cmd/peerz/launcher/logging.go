package launcher

import (
	"fmt"
	"os"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

// setupLogging builds the process logger. Verbosity follows the logrus level
// numbering, so 0 is panic and 6 is trace.
func setupLogging(cfg LoggingConfig) (*logrus.Logger, error) {
	if cfg.Verbosity < int(logrus.PanicLevel) || cfg.Verbosity > int(logrus.TraceLevel) {
		return nil, fmt.Errorf("invalid log verbosity %d", cfg.Verbosity)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.Level(cfg.Verbosity))

	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			ForceColors:   cfg.Color,
			DisableColors: !cfg.Color,
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		hook.Timeout = 5 * time.Second
		hook.StacktraceConfiguration.Enable = true
		log.AddHook(hook)
	}
	return log, nil
}
