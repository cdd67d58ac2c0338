package cmd

import (
	// standard library
	"fmt"
	"sort"
	"strings"

	// external
	"github.com/spf13/cobra"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
	"github.com/louiss0/access-sharepoint-migrator/custom_flags"
	"github.com/louiss0/access-sharepoint-migrator/internal/completion"
)

const OUTPUT_FLAG = "output"

// NewCompletionCmd creates the 'completion' command
func NewCompletionCmd() *cobra.Command {
	outputFileFlag := custom_flags.NewFilePathFlag(OUTPUT_FLAG, "")

	completionCmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for a2sp.

Bash:
		$ a2sp completion bash > /etc/bash_completion.d/a2sp

Zsh:
		$ a2sp completion zsh > "${fpath[1]}/_a2sp"
		# You will need to start a new shell for this setup to take effect.

Fish:
		$ a2sp completion fish > ~/.config/fish/completions/a2sp.fish

PowerShell:
		PS> a2sp completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             completion.NewGenerator().SupportedShells(),
		Args: func(cmd *cobra.Command, args []string) error {
			supportedShells := completion.NewGenerator().SupportedShells()
			sort.Strings(supportedShells)

			supportedShellList := strings.Join(supportedShells, ", ")

			if len(args) != 1 {
				return custom_errors.CreateInvalidArgumentErrorWithMessage(
					fmt.Sprintf("requires exactly one argument representing the shell. Supported shells are: %s", supportedShellList))
			}

			idx := sort.SearchStrings(supportedShells, args[0])
			if idx >= len(supportedShells) || supportedShells[idx] != args[0] {
				return custom_errors.CreateInvalidArgumentErrorWithMessage(
					fmt.Sprintf("unsupported shell: '%s'. Supported shells are: %s", args[0], supportedShellList))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return completion.NewGenerator().GenerateCompletion(cmd.Root(), args[0], outputFileFlag.String())
		},
	}

	completionCmd.Flags().VarP(outputFileFlag, OUTPUT_FLAG, "o", "Write completion script to a file instead of stdout")

	return completionCmd
}
