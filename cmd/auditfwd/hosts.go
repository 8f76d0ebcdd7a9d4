package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func newHostsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List configured hosts and configuration problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunCommand(cmd, cli.CommandConfig{
				Name:  "hosts",
				Viper: v,
				Run:   runHosts,
			})
		},
	}
}

func runHosts(_ context.Context, rt *runtime.Runtime, out *cli.Output) error {
	cfg := rt.Config()

	t := out.Table("hosts", "Section", "Name", "Host", "Dialect", "Journal", "Types", "Poll", "Batch", "State Key").
		AlignRight(7)
	for _, h := range cfg.Hosts {
		t.AddRow(
			h.Section(),
			h.Name,
			h.Host,
			h.Dialect,
			h.Library+"/"+h.Journal,
			strings.Join(h.EntryTypes, ","),
			h.PollInterval.String(),
			h.BatchSize,
			cursorstore.Key(h.Host, h.Library, h.Journal),
		)
	}
	if err := t.Render(); err != nil {
		return err
	}

	if len(cfg.Problems) == 0 {
		return nil
	}
	problems := out.StringList("host-problems")
	for _, p := range cfg.Problems {
		problems.Add(p.Error())
	}
	return problems.Render()
}
