// Package bootstrap implements the one-shot "import-toml" CLI subcommand: it
// reads a legacy TOML process/group definition file and creates a fresh
// appmodel.Configuration from it via the Configuration Store. Grounded in
// the teacher's internal/config.LoadSpecsFromTOML/LoadGroupsFromTOML — same
// viper-with-TOML-type, Unmarshal-into-a-mapstructure-tagged-struct shape —
// adapted from the teacher's flat process/group model to this package's
// single Configuration-of-Applications model.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
)

// FileConfig is the top-level TOML shape accepted by import-toml.
type FileConfig struct {
	Name         string      `toml:"name" mapstructure:"name"`
	Description  string      `toml:"description" mapstructure:"description"`
	Applications []AppConfig `toml:"applications" mapstructure:"applications"`
}

type HealthCheckConfig struct {
	Kind     string        `toml:"kind" mapstructure:"kind"`
	URL      string        `toml:"url" mapstructure:"url"`
	Port     int           `toml:"port" mapstructure:"port"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type AppConfig struct {
	ID             string             `toml:"id" mapstructure:"id"`
	Name           string             `toml:"name" mapstructure:"name"`
	HandlerTag     string             `toml:"handler_tag" mapstructure:"handler_tag"`
	WorkDir        string             `toml:"workdir" mapstructure:"workdir"`
	Command        string             `toml:"command" mapstructure:"command"`
	Env            map[string]string  `toml:"env" mapstructure:"env"`
	BuildCommand   string             `toml:"build_command" mapstructure:"build_command"`
	AutoRestart    bool               `toml:"autorestart" mapstructure:"autorestart"`
	StartupTimeout time.Duration      `toml:"startup_timeout" mapstructure:"startup_timeout"`
	DependsOn      []string           `toml:"depends_on" mapstructure:"depends_on"`
	FixedPort      int                `toml:"fixed_port" mapstructure:"fixed_port"`
	PortEnvVar     string             `toml:"port_env_var" mapstructure:"port_env_var"`
	StopTimeout    time.Duration      `toml:"stop_timeout" mapstructure:"stop_timeout"`
	HealthCheck    *HealthCheckConfig `toml:"health_check" mapstructure:"health_check"`
}

// Load parses path into a FileConfig.
func Load(path string) (FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, fmt.Errorf("read toml config: %w", err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("unmarshal toml config: %w", err)
	}
	return fc, nil
}

// ToConfiguration converts a parsed FileConfig into an appmodel.Configuration
// ready for configstore.Store.Create.
func ToConfiguration(fc FileConfig) (appmodel.Configuration, error) {
	cfg := appmodel.Configuration{Name: fc.Name, Description: fc.Description}
	for _, ac := range fc.Applications {
		spec := appmodel.ApplicationSpec{
			ID:             ac.ID,
			Name:           ac.Name,
			HandlerTag:     ac.HandlerTag,
			WorkDir:        ac.WorkDir,
			Command:        ac.Command,
			Env:            ac.Env,
			BuildCommand:   ac.BuildCommand,
			AutoRestart:    ac.AutoRestart,
			StartupTimeout: appmodel.Seconds(ac.StartupTimeout),
			DependsOn:      ac.DependsOn,
			FixedPort:      ac.FixedPort,
			PortEnvVar:     ac.PortEnvVar,
			StopTimeout:    appmodel.Seconds(ac.StopTimeout),
		}
		if ac.HealthCheck != nil {
			spec.HealthCheck = &appmodel.HealthCheckSpec{
				Kind:     appmodel.HealthCheckKind(ac.HealthCheck.Kind),
				URL:      ac.HealthCheck.URL,
				Port:     ac.HealthCheck.Port,
				Interval: appmodel.Seconds(ac.HealthCheck.Interval),
				Timeout:  appmodel.Seconds(ac.HealthCheck.Timeout),
			}
		}
		cfg.Applications = append(cfg.Applications, spec)
	}
	return cfg, nil
}

// Import reads path, builds a Configuration, and persists it through store,
// returning the newly assigned configuration id.
func Import(store *configstore.Store, path string) (string, error) {
	fc, err := Load(path)
	if err != nil {
		return "", err
	}
	cfg, err := ToConfiguration(fc)
	if err != nil {
		return "", err
	}
	return store.Create(cfg)
}
