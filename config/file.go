package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jxo-me/ddnsd/consts"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. DDNS_LOG_LEVEL.
	EnvPrefix         = "DDNS"
	DefaultConfigFile = "config.yaml"
)

// DefaultConfigSearchDirectories returns the default folders to look for a config file.
func DefaultConfigSearchDirectories() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".ddnsd"))
	}
	return append(dirs, "/etc/ddnsd")
}

// FindConfigPath returns the first config file found in the search
// directories, honouring DDNS_CONFIG_FILE_PATH first.
func FindConfigPath() (string, error) {
	if p := os.Getenv(ConfigFilePathENV); p != "" {
		return p, nil
	}
	for _, dir := range DefaultConfigSearchDirectories() {
		p := filepath.Join(dir, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNoConfigFile
}

// ReadConfig loads and normalizes the configuration at configPath.
func ReadConfig(configPath string, log *zerolog.Logger) (Root, error) {
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return Root{}, errors.Wrap(ErrNoConfigFile, configPath)
		}
		return Root{}, errors.Wrapf(err, "stat config %s", configPath)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if filepath.Ext(configPath) == "" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Root{}, errors.Wrapf(err, "read config %s", configPath)
	}

	var root Root
	if err := v.Unmarshal(&root); err != nil {
		return Root{}, errors.Wrapf(err, "decode config %s", configPath)
	}
	root.Normalize()

	if log != nil {
		log.Debug().Str("path", configPath).Int("targets", len(root.Targets)).Msg("configuration loaded")
	}
	return root, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("retry.max_attempts", consts.DefaultMaxAttempts)
	v.SetDefault("retry.base_delay", consts.DefaultBaseDelay)
	v.SetDefault("retry.max_delay", consts.DefaultMaxDelay)
	v.SetDefault("timeout", consts.DefaultCycleTimeout)
}
