package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const (
	configFlagName = "config"

	// envPrefix scopes environment overrides: --http.addr <- FLEETPEER_HTTP_ADDR.
	envPrefix = "FLEETPEER"
)

// applyConfig merges, in increasing priority, the config file, the
// environment (including a .env file) and explicitly set flags into the options.
func (a *App) applyConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	v := a.viper
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", a.configFile, err)
		}
	}

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

func (a *App) watchConfig() {
	if a.configFile == "" || a.onReload == nil {
		return
	}

	a.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := a.viper.Unmarshal(a.options); err != nil {
			log.Error(err, "Failed to reload configuration", "file", e.Name)
			return
		}
		log.Info("Configuration reloaded", "file", e.Name, "op", e.Op.String())
		a.onReload(e)
	})
	a.viper.WatchConfig()
}
