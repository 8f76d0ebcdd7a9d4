// Package cursor implements the cursor subcommands that inspect and edit the
// stored journal bookmarks.
package cursor

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/config"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func Entrypoint(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect and edit stored journal cursors",
		Long: "Inspect and edit the per-journal bookmarks in the configured state backend.\n" +
			"A host argument is a host name, address or section (host_N) from the\n" +
			"configuration, or a raw state key of the form host/library/journal.",
	}

	cmd.AddCommand(
		newListCmd(v),
		newShowCmd(v),
		newResetCmd(v),
		newSetCmd(v),
	)

	return cmd
}

type runFunc func(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output) error

// withStore runs fn against the configured cursor store.
func withStore(cmd *cobra.Command, v *viper.Viper, name string, fn runFunc) error {
	return cli.RunCommand(cmd, cli.CommandConfig{
		Name:  name,
		Viper: v,
		Run: func(ctx context.Context, rt *runtime.Runtime, out *cli.Output) error {
			store, err := rt.Store()
			if err != nil {
				return err
			}
			if !store.Enabled() {
				return errors.New(errors.ErrConfiguration, "", name, fmt.Errorf("state backend %q keeps no cursors", store.Backend()))
			}
			return fn(ctx, store, rt, out)
		},
	})
}

// resolveKey maps a command argument to a state key.
func resolveKey(cfg config.Config, arg string) (string, error) {
	for _, h := range cfg.Hosts {
		if h.Name == arg || h.Host == arg || h.Section() == arg {
			return cursorstore.Key(h.Host, h.Library, h.Journal), nil
		}
	}
	if strings.Contains(arg, "/") {
		return arg, nil
	}
	return "", errors.New(errors.ErrNotFound, arg, "resolve", fmt.Errorf("no configured host matches %q", arg))
}
