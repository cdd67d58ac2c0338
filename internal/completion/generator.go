// Package completion writes shell completion scripts for the a2sp command tree.
package completion

import (
	// standard library
	"fmt"
	"io"
	"os"

	// external
	"github.com/spf13/cobra"
)

// Generator writes completion scripts for a cobra command tree.
type Generator interface {
	// GenerateCompletion writes the script for shell to filename, or to the command's output when filename is empty.
	GenerateCompletion(cmd *cobra.Command, shell string, filename string) error

	// SupportedShells returns the shell names GenerateCompletion accepts.
	SupportedShells() []string
}

type generator struct{}

// NewGenerator creates a new completion generator instance.
func NewGenerator() Generator {
	return generator{}
}

func (generator) SupportedShells() []string {
	return []string{"bash", "fish", "powershell", "zsh"}
}

func (g generator) GenerateCompletion(cmd *cobra.Command, shell string, filename string) (err error) {
	var outputWriter io.Writer = cmd.OutOrStdout()

	if filename != "" {
		file, err := os.Create(filename)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", filename, err)
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close completion file %s: %w", filename, cerr)
			}
		}()
		outputWriter = file
	}

	switch shell {
	case "bash":
		return cmd.GenBashCompletionV2(outputWriter, true)
	case "zsh":
		return cmd.GenZshCompletion(outputWriter)
	case "fish":
		return cmd.GenFishCompletion(outputWriter, true)
	case "powershell":
		return cmd.GenPowerShellCompletionWithDesc(outputWriter)
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}
