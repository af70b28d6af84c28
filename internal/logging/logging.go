package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File, when set, receives JSON logs through a rotating writer instead of Stderr.
	File   string
	Stderr io.Writer
}

// New builds the process logger. Stdout is never used: the worker speaks its protocol
// there.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	log.SetLevel(level)

	if strings.TrimSpace(opts.File) != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		log.SetOutput(rot)
		log.SetFormatter(&logrus.JSONFormatter{})
		return log, rot, nil
	}

	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nopCloser{}, nil
}

// ParseLevel accepts logrus level names; empty means info.
func ParseLevel(s string) (logrus.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
