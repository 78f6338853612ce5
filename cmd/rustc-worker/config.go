package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"
)

// settings are the resolved command line options.
type settings struct {
	CompilationMode string
	CacheRoot       string
	IncrementalFlag string
	LogLevel        string
}

type fileConfig struct {
	CompilationMode string `toml:"compilation_mode"`
	CacheRoot       string `toml:"cache_root"`
	IncrementalFlag string `toml:"incremental_flag"`
	LogLevel        string `toml:"log_level"`
}

// loadSettings reads the flags and fills in the ones not given on the command line
// or in the environment from the --config file, if any.
func loadSettings(c *cli.Context) (settings, error) {
	s := settings{
		CompilationMode: c.String("compilation_mode"),
		CacheRoot:       c.String("cache_root"),
		IncrementalFlag: c.String("incremental_flag"),
		LogLevel:        c.String("log_level"),
	}
	path := c.String("config")
	if path == "" {
		return s, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return settings{}, fmt.Errorf("unknown keys in config %s: %v", path, undecoded)
	}

	apply := func(key string, dst *string, value string) {
		if meta.IsDefined(key) && !c.IsSet(key) {
			*dst = strings.TrimSpace(value)
		}
	}
	apply("compilation_mode", &s.CompilationMode, raw.CompilationMode)
	apply("cache_root", &s.CacheRoot, raw.CacheRoot)
	apply("incremental_flag", &s.IncrementalFlag, raw.IncrementalFlag)
	apply("log_level", &s.LogLevel, raw.LogLevel)
	return s, nil
}
