package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/cmd/auditfwd/cursor"
	"github.com/gezibash/auditfwd/internal/config"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "auditfwd",
		Short:        "Forward IBM i audit journal entries to syslog",
		SilenceUsage: true,
	}

	config.BindFlags(rootCmd, v)
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json, yaml, markdown)")
	_ = v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(newRunCmd(v))
	rootCmd.AddCommand(newHostsCmd(v))
	rootCmd.AddCommand(cursor.Entrypoint(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
