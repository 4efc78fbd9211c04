package logger

import (
	"context"
	"os"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// New builds the process logger. Development gets readable text, everything else JSON.
func New(level string, development bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if development {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
		return log
	}

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	return log
}

// FromContext returns an entry carrying the New Relic trace and span ids of the
// transaction stored in ctx, if any.
func FromContext(ctx context.Context, log logrus.FieldLogger) logrus.FieldLogger {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return log
	}
	md := txn.GetLinkingMetadata()
	if md.TraceID == "" {
		return log
	}
	return log.WithFields(logrus.Fields{
		"trace.id": md.TraceID,
		"span.id":  md.SpanID,
	})
}
