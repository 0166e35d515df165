package main

import (
	"github.com/spf13/cobra"

	"github.com/raphi011/gitks/internal/keyserver"
	"github.com/raphi011/gitks/internal/output"
)

func newCloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clone [url] [dir]",
		Short:   "Fetch a keyserver repository",
		GroupID: GroupKeyserver,
		Args:    usageArgs(cobra.MaximumNArgs(2)),
		Long: `Fetch a keyserver repository.

Without arguments, or with SELF, the current repository is its own
keyserver and nothing is cloned. A url is cloned into dir, or into
<clone_dir>/<repository name> from the config file. An existing
repository at the destination is left as is.`,
		Example: `  gitks clone                                  # Self-hosted keyserver
  gitks clone git@github.com:org/keys.git      # Clone into clone_dir/keys
  gitks clone https://host/org/keys.git ./keys # Clone into ./keys`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			var url, dir string
			if len(args) > 0 {
				url = args[0]
			}
			if len(args) > 1 {
				dir = args[1]
			}
			src, err := keyserver.ParseCloneSource(url, dir)
			if err != nil {
				return err
			}

			client := &keyserver.Client{CloneDir: loadedConfig().CloneDir}
			res, err := client.Clone(ctx, src)
			if err != nil {
				return err
			}

			p := output.FromContext(ctx)
			switch {
			case res.Dir == "":
				p.Successf("Using this repository as its own keyserver")
			case res.Cloned:
				p.Successf("Cloned %s into %s", url, res.Dir)
			default:
				p.Successf("Keyserver already present at %s", res.Dir)
			}
			return nil
		},
	}

	return cmd
}
