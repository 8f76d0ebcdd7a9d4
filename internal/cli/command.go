package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/config"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

// CommandConfig configures a CLI command that runs against a Runtime.
type CommandConfig struct {
	// Name identifies this command in logs.
	Name string

	// Viper holds the command's configuration. Flags must already be bound.
	Viper *viper.Viper

	// Timeout for the command operation. Zero means no timeout.
	Timeout time.Duration

	// Signals makes SIGINT/SIGTERM cancel the command context.
	Signals bool

	// Run is the command's business logic.
	Run func(ctx context.Context, rt *runtime.Runtime, out *Output) error
}

// RunCommand executes a CLI command with standard infrastructure setup:
// load config -> build runtime -> timeout -> output -> Run -> close.
func RunCommand(cmd *cobra.Command, cfg CommandConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("command name required")
	}
	if cfg.Viper == nil {
		return fmt.Errorf("viper required")
	}
	if cfg.Run == nil {
		return fmt.Errorf("run function required")
	}

	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	loaded, err := config.Load(cfg.Viper, configFile, envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := runtime.New(cfg.Name).
		Config(loaded).
		LogWriter(cmd.ErrOrStderr()).
		HandleSignals(cfg.Signals).
		Build(cmd.Context())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.Log().Warn("shutdown", "error", cerr)
		}
	}()

	ctx := rt.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	return cfg.Run(ctx, rt, NewOutputFromViper(cfg.Viper, cmd.OutOrStdout()))
}
