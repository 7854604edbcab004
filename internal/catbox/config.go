package catbox

import (
	"time"

	"github.com/horgh/config"
	"github.com/pkg/errors"
)

// Config holds server tuning. ListenPort and Password are mandatory and
// come from the CLI; everything else has a sane default and may optionally
// be overridden by a tuning file (see LoadTuning).
type Config struct {
	ListenPort  int
	Password    string
	ServerName  string
	NetworkName string
	Version     string
	CreatedDate string
	MOTD        []string

	MaxNickLength int
	PingTime      time.Duration
	DeadTime      time.Duration
}

// DefaultConfig returns the tuning a bare `catboxd <port> <password>`
// invocation runs with.
func DefaultConfig(port int, password string) Config {
	return Config{
		ListenPort:    port,
		Password:      password,
		ServerName:    "catbox.local",
		NetworkName:   "catbox",
		Version:       "catbox-0.1",
		CreatedDate:   "unknown",
		MOTD:          []string{"Welcome to catbox."},
		MaxNickLength: 9,
		PingTime:      10 * time.Second,
		DeadTime:      30 * time.Second,
	}
}

// LoadTuning overrides cfg's optional fields from a key=value file, in the
// same format read by the teacher's config package
// (github.com/horgh/config.ReadStringMap): "key = value" lines, '#'
// comments, blank lines ignored. Unlike that package's PopulateStruct, every
// key here is optional — a tuning file may set as few or as many as it
// likes — since durations and string slices aren't kinds PopulateStruct
// understands.
func LoadTuning(path string, cfg *Config) error {
	raw, err := config.ReadStringMap(path)
	if err != nil {
		return errors.Wrap(err, "unable to read tuning file")
	}

	if v, ok := raw["server-name"]; ok && v != "" {
		cfg.ServerName = v
	}
	if v, ok := raw["network-name"]; ok && v != "" {
		cfg.NetworkName = v
	}
	if v, ok := raw["version"]; ok && v != "" {
		cfg.Version = v
	}
	if v, ok := raw["created-date"]; ok && v != "" {
		cfg.CreatedDate = v
	}
	if v, ok := raw["motd"]; ok && v != "" {
		cfg.MOTD = []string{v}
	}

	if v, ok := raw["ping-time"]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid ping-time %q", v)
		}
		cfg.PingTime = d
	}
	if v, ok := raw["dead-time"]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid dead-time %q", v)
		}
		cfg.DeadTime = d
	}

	return nil
}
