package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

// CheckID checks whether a string is a valid id
func CheckID(id string) error {
	if uuid.Parse(id) == nil {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// Print writes v as a json line when asJSON is set, or its string form
// otherwise
func Print(w io.Writer, v fmt.Stringer, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, v.String())
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(buf))
	return err
}

// SetupLogging sets the level and format of the standard logger. Text output
// carries no timestamps.
func SetupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}
