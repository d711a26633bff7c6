package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BaseDirName     = ".config/tunnelguard"
	PidFileName     = "daemon.pid"
	SocketName      = "daemon.sock"
	DatabaseName    = "events.db"
	TunnelsFileName = "tunnels.hcl"
)

// Config is the global configuration instance, initialized by InitializeConfig.
var Config *viper.Viper

var globalFlagsToConfigKey = map[string]string{
	"config-path": "config_path",
	"verbose":     "verbose",
}

// GetConfigPath returns the directory holding the daemon socket, the frpc
// binary, per-tunnel config files and the custom tunnel index.
func GetConfigPath() string {
	return Config.GetString("config_path")
}

func GetSocketPath() string {
	return filepath.Join(GetConfigPath(), SocketName)
}

func GetPIDFilePath() string {
	return filepath.Join(GetConfigPath(), PidFileName)
}

func GetDatabasePath() string {
	return filepath.Join(GetConfigPath(), DatabaseName)
}

func GetTunnelsFilePath() string {
	return filepath.Join(GetConfigPath(), TunnelsFileName)
}

func GetGuardEnabled() bool {
	return Config.GetBool("guard.enabled")
}

// SetGuardEnabled persists the guard toggle so it survives daemon restarts.
func SetGuardEnabled(enabled bool) error {
	Config.Set("guard.enabled", enabled)
	return Config.WriteConfig()
}

func GetGuardPollInterval() time.Duration {
	return Config.GetDuration("guard.poll_interval")
}

func GetGuardRestartDelay() time.Duration {
	return Config.GetDuration("guard.restart_delay")
}

func GetGuardWakeGrace() time.Duration {
	return Config.GetDuration("guard.wake_grace")
}

func GetAutostartEnabled() bool {
	return Config.GetBool("autostart.enabled")
}

func GetLogHistorySize() int {
	return Config.GetInt("log.history_size")
}

// GetUserToken and GetNodeToken are config-file fallbacks; the keyring is
// consulted first by callers that need credentials.
func GetUserToken() string {
	return Config.GetString("credentials.user_token")
}

func GetNodeToken() string {
	return Config.GetString("credentials.node_token")
}

func InitializeConfig(cmd *cobra.Command) error {
	Config = viper.New()

	configPath, err := cmd.Root().PersistentFlags().GetString("config-path")
	if err != nil {
		return fmt.Errorf("unable to determine config path: %w", err)
	}
	Config.AddConfigPath(configPath)

	Config.SetConfigName("config")
	Config.SetConfigType("toml")

	Config.SetDefault("config_path", configPath)
	Config.SetDefault("verbose", 0)
	Config.SetDefault("guard.enabled", true)
	Config.SetDefault("guard.poll_interval", "3s")
	Config.SetDefault("guard.restart_delay", "1s")
	Config.SetDefault("guard.wake_grace", "15s")
	Config.SetDefault("autostart.enabled", false)
	Config.SetDefault("log.history_size", 1000)

	Config.SetEnvPrefix("tunnelguard")

	if err := Config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run - create the config directory and write defaults
			if err := os.MkdirAll(configPath, 0o755); err != nil {
				return err
			}
			Config.SafeWriteConfig()
		} else {
			return err
		}
	}

	// Map environment variables into config sections (. becomes _)
	Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Config.AutomaticEnv()

	// Bind global flags to viper: flags win when set, config fills the rest
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		configKey, ok := globalFlagsToConfigKey[f.Name]
		if !ok {
			return
		}
		if !f.Changed && Config.IsSet(configKey) {
			cmd.Flags().Set(f.Name, fmt.Sprintf("%v", Config.Get(configKey)))
		} else {
			Config.Set(configKey, fmt.Sprintf("%v", f.Value))
		}
	})

	return nil
}
