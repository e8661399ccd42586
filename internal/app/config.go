package app

import (
	"fmt"

	coreconfig "github.com/DoctorPlant/DrPlantTelegramApp/core/config"
	coredatabase "github.com/DoctorPlant/DrPlantTelegramApp/core/database"
)

// Config is the process configuration: the shared core sections plus the
// optional diagnosis database.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, applies environment overrides and normalises every
// section.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}
	return &cfg, nil
}
