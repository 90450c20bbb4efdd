package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Fields is an alias so callers don't need to import logrus directly.
type Fields = logrus.Fields

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	Configure(os.Getenv("ENVIRONMENT"))
}

// Configure switches formatting and level for the given environment.
// Production gets JSON lines, development gets debug output.
func Configure(environment string) {
	switch environment {
	case "production":
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	case "development":
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

func Info(format string, v ...interface{}) {
	log.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	log.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

func Fatal(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}

func WithFields(fields Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// Helper for offer saga logs
func LogSagaError(offerID, step string, err error) {
	log.WithFields(logrus.Fields{
		"offer_id": offerID,
		"step":     step,
	}).Warnf("Offer saga step failed: %v", err)
}
