package cursor

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func newResetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <host|key>...",
		Short: "Forget stored cursors so the next run resends those journals from the start",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, v, "cursor-reset", func(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output) error {
				return runReset(ctx, store, rt, out, args)
			})
		},
	}
}

func runReset(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output, args []string) error {
	keys := make([]string, 0, len(args))
	for _, arg := range args {
		key, err := resolveKey(rt.Config(), arg)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return err
		}
		rt.Log().Info("cursor reset", "key", key)
	}

	res := out.Result("cursor-reset", "cursors removed").With("Backend", store.Backend())
	for i, key := range keys {
		res.With(args[i], key)
	}
	return res.Render()
}
