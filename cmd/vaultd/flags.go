package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	ConfigKey = "config"

	defaultConfigPath = "services/vaultd/config.yaml"
)

// AddFlags registers the daemon flags.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigKey, defaultConfigPath, "path to the vaultd YAML config")
}

// ParseFlags returns the config path.
func ParseFlags(flags *pflag.FlagSet) (string, error) {
	path, err := flags.GetString(ConfigKey)
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("--%s is required", ConfigKey)
	}
	return path, nil
}
