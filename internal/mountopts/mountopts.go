// Package mountopts parses the daemon's `-o key=value,...` mount-option
// string into a validated Options value. The recognized vocabulary and
// defaults are spec'd exactly: source/shadow tree root, optional DAX
// device, writeback/flock/readdirplus toggles, the pass_yaml diagnostic
// switch, the cache mode that picks a default attribute timeout, and the
// debug verbosity fed to internal/logger.
package mountopts

import (
	"fmt"
	"strconv"
	"strings"
)

// CacheMode selects the default attribute/entry timeout when the caller
// hasn't set one explicitly, and the caching flags advertised at session
// init.
type CacheMode int

const (
	CacheNever CacheMode = iota
	CacheAuto
	CacheAlways
)

func (c CacheMode) String() string {
	switch c {
	case CacheNever:
		return "never"
	case CacheAlways:
		return "always"
	default:
		return "auto"
	}
}

// Options is the parsed, validated mount-option set.
type Options struct {
	Source string // shadow-tree root; required

	DaxDev    string
	HasDaxDev bool

	Writeback bool
	Flock     bool
	PassYAML  bool

	Timeout    float64
	TimeoutSet bool
	Cache      CacheMode

	Readdirplus bool
	Debug       int
}

// Defaults returns the option set before applying any -o entries,
// matching the daemon's documented out-of-the-box behavior: advisory
// locking on, writeback off, normal caching, readdirplus on.
func Defaults() Options {
	return Options{
		Flock:       true,
		Cache:       CacheAuto,
		Readdirplus: true,
		Debug:       1,
	}
}

// Parse splits s on commas and applies each key[=value] entry over
// Defaults(). It fails if source/shadow is never supplied, an unknown key
// appears, or a value fails to parse.
func Parse(s string) (Options, error) {
	opts := Defaults()

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, val, hasVal := strings.Cut(entry, "=")
		switch key {
		case "source", "shadow":
			if !hasVal || val == "" {
				return Options{}, fmt.Errorf("mountopts: %s requires a path", key)
			}
			opts.Source = val

		case "daxdev":
			if !hasVal || val == "" {
				return Options{}, fmt.Errorf("mountopts: daxdev requires a device name")
			}
			opts.DaxDev = val
			opts.HasDaxDev = true

		case "writeback":
			opts.Writeback = true
		case "no_writeback":
			opts.Writeback = false

		case "flock":
			opts.Flock = true
		case "no_flock":
			opts.Flock = false

		case "pass_yaml":
			opts.PassYAML = true

		case "readdirplus":
			opts.Readdirplus = true
		case "no_readdirplus":
			opts.Readdirplus = false

		case "timeout":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Options{}, fmt.Errorf("mountopts: invalid timeout %q: %w", val, err)
			}
			if f < 0 {
				return Options{}, fmt.Errorf("mountopts: timeout must be non-negative, got %v", f)
			}
			opts.Timeout = f
			opts.TimeoutSet = true

		case "cache":
			switch val {
			case "never":
				opts.Cache = CacheNever
			case "auto":
				opts.Cache = CacheAuto
			case "always":
				opts.Cache = CacheAlways
			default:
				return Options{}, fmt.Errorf("mountopts: invalid cache mode %q", val)
			}

		case "debug":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Options{}, fmt.Errorf("mountopts: invalid debug level %q: %w", val, err)
			}
			opts.Debug = n

		default:
			return Options{}, fmt.Errorf("mountopts: unrecognized option %q", key)
		}
	}

	if opts.Source == "" {
		return Options{}, fmt.Errorf("mountopts: source (or shadow) is required")
	}

	if !opts.TimeoutSet {
		opts.Timeout = defaultTimeout(opts.Cache)
	}

	return opts, nil
}

func defaultTimeout(c CacheMode) float64 {
	switch c {
	case CacheNever:
		return 0.0
	case CacheAlways:
		return 86400.0
	default:
		return 1.0
	}
}
