package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/config"
	"github.com/gezibash/auditfwd/internal/fetch"
	"github.com/gezibash/auditfwd/internal/monitor"
	"github.com/gezibash/auditfwd/internal/sink"
	"github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/logging"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tail every configured journal and forward new entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cmd, cli.CommandConfig{
				Name:    "run",
				Viper:   v,
				Signals: true,
				Run:     runRun,
			})
		},
	}
	config.BindRunFlags(cmd, v)
	return cmd
}

func runRun(ctx context.Context, rt *runtime.Runtime, _ *cli.Output) error {
	cfg := rt.Config()
	log := rt.Log()

	for _, p := range cfg.Problems {
		log.Error("invalid host configuration", "error", p)
	}
	if len(cfg.Hosts) == 0 {
		return errors.New(errors.ErrConfiguration, "", "start", monitor.ErrNoHosts)
	}

	sinkCfg, err := sink.ConfigFromMap(cfg.Sink)
	if err != nil {
		return errors.New(errors.ErrConfiguration, "", "sink", err)
	}

	store, err := rt.Store()
	if err != nil {
		return err
	}
	var st monitor.Store
	if store.Enabled() {
		st = store
	} else {
		log.Warn("cursor persistence disabled; every restart resends the whole journal")
	}

	sup := monitor.NewSupervisor(cfg.Hosts, newFactory(sinkCfg, st, log), monitor.SupervisorConfig{
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, log, rt.Metrics())

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		rt.Observability().ServeMetrics(addr, func() any { return sup.Status() })
	}

	log.Info("auditfwd starting",
		"hosts", len(cfg.Hosts),
		"sink", sinkCfg.Type,
		"state_backend", store.Backend(),
	)
	if err := sup.Run(ctx); err != nil {
		return err
	}
	log.Info("auditfwd stopped")
	return nil
}

// newFactory opens the fetcher and sink for one host. Every host gets its own
// sink so a slow or broken connection stays local to that host.
func newFactory(sinkCfg sink.Config, store monitor.Store, log *logging.Logger) monitor.Factory {
	return func(_ context.Context, h config.Host) (monitor.Deps, error) {
		dialect, err := fetch.ParseDialect(h.Dialect)
		if err != nil {
			return monitor.Deps{}, err
		}
		f, err := fetch.Open(fetch.Source{
			Dialect:  dialect,
			Host:     h.Host,
			User:     h.User,
			Password: h.Password,
			Driver:   h.Driver,
		}, fetch.Config{
			Host:            h.Name,
			Dialect:         dialect,
			Library:         h.Library,
			Journal:         h.Journal,
			ReceiverLibrary: h.ReceiverLibrary,
			EntryTypes:      h.EntryTypes,
			BatchSize:       h.BatchSize,
		})
		if err != nil {
			return monitor.Deps{}, err
		}
		s, err := sink.New(sinkCfg, h.Name, log)
		if err != nil {
			_ = f.Close()
			return monitor.Deps{}, fmt.Errorf("open sink: %w", err)
		}
		return monitor.Deps{Fetcher: f, Sink: s, Store: store}, nil
	}
}
