package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phanxgames/stagehand"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <script>...",
		Short: "Check scripts without running them",
		Long: `Decodes each script and checks command kinds and required payloads.
Queries are not resolved and assets are not read.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd.OutOrStdout())
			var failed []error
			for _, path := range args {
				n, err := validateFile(path)
				if err != nil {
					p.line(colorError, "invalid", "%s: %v", path, err)
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				p.line(colorLoad, "ok", "%s: %d commands", path, n)
			}
			return errors.Join(failed...)
		},
	}
}

func validateFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	cmds, err := stagehand.ParseScript(data)
	if err != nil {
		return 0, err
	}
	return len(cmds), stagehand.ValidateScript(cmds)
}
