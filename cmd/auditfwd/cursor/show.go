package cursor

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func newShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show <host|key>",
		Short: "Show the stored cursor for one journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, v, "cursor-show", func(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output) error {
				return runShow(ctx, store, rt, out, args[0])
			})
		},
	}
}

func runShow(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output, arg string) error {
	key, err := resolveKey(rt.Config(), arg)
	if err != nil {
		return err
	}
	c, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	return out.KV("cursor").
		Set("Key", key).
		Set("Receiver", c.ReceiverID).
		Set("Sequence", c.Sequence).
		Set("Backend", store.Backend()).
		Render()
}
