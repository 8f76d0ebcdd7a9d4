package cursor

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/cli"
	"github.com/gezibash/auditfwd/internal/cursorstore"
	"github.com/gezibash/auditfwd/pkg/runtime"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, v, "cursor-list", runList)
		},
	}
}

func runList(ctx context.Context, store *cursorstore.Store, _ *runtime.Runtime, out *cli.Output) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}

	t := out.Table("cursors", "Key", "Receiver", "Sequence", "Error").AlignRight(2)
	for _, r := range records {
		if r.Err != nil {
			t.AddRow(r.Key, "", "", r.Err.Error())
			continue
		}
		t.AddRow(r.Key, r.Cursor.ReceiverID, r.Cursor.Sequence, "")
	}
	return t.Render()
}
