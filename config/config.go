package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const engineSection = "engine"

type Config struct {
	DataDir    string
	LogLevel   string
	LogConsole bool
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:    "data",
		LogLevel:   "info",
		LogConsole: true,
	}
}

// Load reads the ini file at path. A missing file yields the defaults,
// a present but unparsable one is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	section := file.Section(engineSection)
	cfg.DataDir = section.Key("data_dir").MustString(cfg.DataDir)
	cfg.LogLevel = section.Key("log_level").MustString(cfg.LogLevel)
	cfg.LogConsole = section.Key("log_console").MustBool(cfg.LogConsole)
	return cfg, nil
}
