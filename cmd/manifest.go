package cmd

import (
	// standard library
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	// external
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	// internal
	"github.com/louiss0/access-sharepoint-migrator/custom_errors"
	"github.com/louiss0/access-sharepoint-migrator/custom_flags"
	"github.com/louiss0/access-sharepoint-migrator/manifest"
)

const (
	FORMAT_FLAG = "format"
	CHECK_FLAG  = "check"
)

var OutputFormats = []string{"text", "json", "yaml"}

// NewManifestCmd creates the 'manifest' command that validates a requirements manifest.
func NewManifestCmd() *cobra.Command {
	formatFlag := custom_flags.NewUnionFlag(OutputFormats, FORMAT_FLAG)

	cmd := &cobra.Command{
		Use:   "manifest [path]",
		Short: "Validate a requirements manifest",
		Long: fmt.Sprintf(`Parse a requirements.txt style manifest and report every invalid line.

Each line must hold one dependency: a package name, optional extras and an optional
comma separated list of version specifiers (~=, ==, !=, <=, >=, <, >, ===).
Comments, blank lines and -r includes are allowed.

The path defaults to %s.

Examples:
		a2sp manifest
		a2sp manifest requirements-dev.txt --format json
		a2sp manifest --check msal=1.24.0 --check pyodbc=5.0.1`, manifest.DefaultFileName),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := manifest.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}

			checks, err := cmd.Flags().GetStringArray(CHECK_FLAG)
			if err != nil {
				return err
			}

			getDebugExecutorFromCommandContext(cmd).LogDebugMessageIfDebugIsTrue("Parsing manifest", "path", path)

			m, err := manifest.ParseFile(path)
			if err != nil {
				lineErrors := manifest.LineErrors(err)
				for _, lineErr := range lineErrors {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), lineErr.Error())
				}
				if len(lineErrors) > 0 {
					return fmt.Errorf("%s has %d invalid line(s)", path, len(lineErrors))
				}
				return err
			}

			getGoEnvFromCommandContext(cmd).ExecuteIfModeIsProduction(func() {
				log.Info("Manifest is valid", "path", path, "requirements", len(m.Requirements))
			})

			if len(checks) > 0 {
				return runManifestChecks(cmd.OutOrStdout(), m, checks)
			}

			return writeManifest(cmd.OutOrStdout(), m, formatFlag.String())
		},
	}

	cmd.Flags().Var(formatFlag, FORMAT_FLAG, fmt.Sprintf("Output format, one of %v", OutputFormats))
	cmd.Flags().StringArray(CHECK_FLAG, nil, "Check that name=version satisfies the manifest (repeatable)")

	_ = cmd.RegisterFlagCompletionFunc(
		FORMAT_FLAG,
		cobra.FixedCompletions(OutputFormats, cobra.ShellCompDirectiveNoFileComp),
	)

	return cmd
}

func writeManifest(w io.Writer, m *manifest.Manifest, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(m)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(m); err != nil {
			return err
		}
		return encoder.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "LINE\tNAME\tCONSTRAINT")
		for _, req := range m.Requirements {
			constraint := req.Constraint()
			if constraint == "" {
				constraint = "*"
			}
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", req.Line, req.Name, constraint)
		}
		return tw.Flush()
	}
}

func runManifestChecks(w io.Writer, m *manifest.Manifest, checks []string) error {
	var rejected []string

	for _, check := range checks {
		name, version, found := strings.Cut(check, "=")
		name, version = strings.TrimSpace(name), strings.TrimSpace(strings.TrimLeft(version, "="))
		if !found || name == "" || version == "" {
			return custom_errors.CreateInvalidFlagErrorWithMessage(
				custom_errors.FlagName(CHECK_FLAG),
				fmt.Sprintf("%q must be written as name=version", check),
			)
		}

		req, ok := m.Lookup(name)
		if !ok {
			return custom_errors.CreateInvalidArgumentErrorWithMessage(fmt.Sprintf("%s is not listed in the manifest", name))
		}

		allowed, err := req.Allows(version)
		if err != nil {
			return err
		}

		if allowed {
			_, _ = fmt.Fprintf(w, "%s %s satisfies %s\n", req.Name, version, req.Constraint())
			continue
		}

		_, _ = fmt.Fprintf(w, "%s %s does not satisfy %s\n", req.Name, version, req.Constraint())
		rejected = append(rejected, name)
	}

	if len(rejected) > 0 {
		return fmt.Errorf("versions rejected by the manifest: %s", strings.Join(rejected, ", "))
	}
	return nil
}
