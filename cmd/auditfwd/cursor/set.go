package cursor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	pkgcursor "github.com/gezibash/auditfwd/pkg/cursor"
	"github.com/gezibash/auditfwd/pkg/errors"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func newSetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "set <host|key> <receiver> <sequence>",
		Short: "Reposition a journal cursor",
		Long: "Store a cursor by hand. The next run forwards entries strictly after\n" +
			"the given receiver and sequence number.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, v, "cursor-set", func(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output) error {
				return runSet(ctx, store, rt, out, args[0], args[1], args[2])
			})
		},
	}
}

func runSet(ctx context.Context, store *cursorstore.Store, rt *runtime.Runtime, out *cli.Output, arg, receiver, sequence string) error {
	key, err := resolveKey(rt.Config(), arg)
	if err != nil {
		return err
	}
	seq, err := strconv.ParseUint(sequence, 10, 64)
	if err != nil {
		return errors.New(errors.ErrInvalidInput, "", "cursor set", fmt.Errorf("sequence %q: %w", sequence, err))
	}
	if receiver == "" {
		return errors.New(errors.ErrInvalidInput, "", "cursor set", fmt.Errorf("receiver cannot be empty"))
	}

	c := pkgcursor.New(receiver, seq)
	prev, prevErr := store.Get(ctx, key)
	if err := store.Save(ctx, key, c); err != nil {
		return err
	}
	rt.Log().Info("cursor set", "key", key, "cursor", c.String())

	res := out.Result("cursor-set", "cursor stored").
		With("Key", key).
		With("Cursor", c.String())
	if prevErr == nil {
		res.With("Previous", prev.String())
	}
	return res.Render()
}
