package main

import (
	"github.com/spf13/cobra"

	"github.com/raphi011/gitks/internal/config"
	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/keyserver"
	"github.com/raphi011/gitks/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config [path]",
		Short:   "Show keyserver settings",
		Aliases: []string{"cfg"},
		GroupID: GroupInspect,
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		Long: `Show the keyserver settings recorded in the repository at path.

Values come from the repository's local git config (gitks.keys.branch,
gitks.keys.dir, enc.keyserver); unset keys show their defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			root, err := resolveRepo(args)
			if err != nil {
				return err
			}
			s, err := keyserver.LoadSettings(ctx, git.New(root))
			if err != nil {
				return err
			}

			ks := s.Keyserver
			if !s.Initialised() {
				ks = "(not initialised)"
			}
			cfgPath, err := config.Path()
			if err != nil {
				cfgPath = "(unavailable)"
			}

			output.FromContext(ctx).KeyValues([][2]string{
				{keyserver.ConfigEncKeyserver, ks},
				{keyserver.ConfigKeysBranch, s.KeysBranch},
				{"test branch", keyserver.TestBranch(s.KeysBranch)},
				{"final branch", keyserver.FinalBranch(s.KeysBranch)},
				{keyserver.ConfigKeysDir, s.KeysDir},
				{"config file", cfgPath},
			})
			return nil
		},
	}

	return cmd
}
