// Package logging configures the process-wide logrus logger.
package logging

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"io"
)

// Configure sends log output to out at the given level,
// formatted as "text" or "json".
func Configure(out io.Writer, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.WithMessage(err, "configure logging")
	}

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("configure logging: unknown format %q", format)
	}
	log.SetLevel(lvl)
	log.SetOutput(out)
	return nil
}
