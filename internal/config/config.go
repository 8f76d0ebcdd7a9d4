package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/storage"
)

// Config is the fully resolved process configuration.
type Config struct {
	State           BackendConfig       `mapstructure:"state"`
	Sink            map[string]string   `mapstructure:"sink"`
	Observability   ObservabilityConfig `mapstructure:"observability"`
	ShutdownTimeout time.Duration       `mapstructure:"-"`

	// Hosts are the complete hosts in index order. Problems lists every
	// host_N section that was skipped and why.
	Hosts    []Host  `mapstructure:"-"`
	Problems []error `mapstructure:"-"`
}

// BackendConfig selects a cursor store backend and its settings.
type BackendConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("observability.log_level", Common.LogLevel)
	v.SetDefault("observability.log_format", Common.LogFormat)
	v.SetDefault("observability.metrics_addr", "")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", Common.ServiceName)
	v.SetDefault("observability.service_version", Common.ServiceVersion)

	v.SetDefault("state.backend", Common.StateBackend)
	v.SetDefault("shutdown_timeout", "0s")
}

// BindFlags binds the global flags shared by every command.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()

	f.String("config", "", "config file path")
	f.String("env-file", "", "dotenv file to load before reading the environment (default .env when present)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (auto, json, text)")
	f.String("state-backend", "", "cursor store backend (none, memory, file, badger, sqlite, redis, s3)")

	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("state.backend", f.Lookup("state-backend"))
}

// BindRunFlags binds flags only the run command accepts.
func BindRunFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("metrics-addr", "", "metrics, health and status HTTP listen address (empty disables)")
	f.Duration("shutdown-timeout", 0, "give up waiting for in-flight batches after this long (0 waits forever)")

	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("shutdown_timeout", f.Lookup("shutdown-timeout"))
}

// Load reads settings from flags, env and file and discovers hosts. envFile
// is loaded first when set; otherwise .env is loaded if it exists.
func Load(v *viper.Viper, configFile, envFile string) (Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	setDefaults(v)
	if err := readInConfig(v, configFile, ".", "$HOME/.auditfwd", "/etc/auditfwd"); err != nil {
		return Config{}, err
	}

	var cfg Config
	err := v.Unmarshal(&cfg)
	if err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = storage.GetDuration(map[string]string{"shutdown_timeout": v.GetString("shutdown_timeout")}, "shutdown_timeout", 0); err != nil {
		return Config{}, err
	}
	cfg.State.Config = mergeEnvSection(cfg.State.Config, "state.config")
	cfg.Sink = mergeEnvSection(cfg.Sink, "sink")
	cfg.Hosts, cfg.Problems = DiscoverHosts(v)
	return cfg, nil
}

// mergeEnvSection adds AUDITFWD_<SECTION>_<KEY> variables to a free-form
// map section. Viper only resolves environment variables for keys it
// already knows about.
func mergeEnvSection(m map[string]string, section string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	prefix := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(section, ".", "_")) + "_"
	for _, kv := range os.Environ() {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) || len(k) == len(prefix) {
			continue
		}
		m[strings.ToLower(k[len(prefix):])] = val
	}
	return m
}
