package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/logging/colors"
	"github.com/spf13/cobra"
)

// selectorsCmd represents the command provider for selectors
var selectorsCmd = &cobra.Command{
	Use:               "selectors",
	Short:             "Prints the constructors and messages of the configured contract",
	Long:              `Builds the configured contract and prints its interface table: every constructor and message (or function) with its selector`,
	Args:              cmdValidateNoArgs("selectors"),
	ValidArgsFunction: cmdValidFlagArgs,
	RunE:              cmdRunSelectors,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	addConfigFlags(selectorsCmd)
	rootCmd.AddCommand(selectorsCmd)
}

// cmdRunSelectors executes the selectors CLI command
func cmdRunSelectors(cmd *cobra.Command, args []string) error {
	projectConfig, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the selectors command", err)
		return err
	}
	closeLog, err := configureLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to run the selectors command", err)
		return err
	}
	defer closeLog()

	artifact, err := buildProject(projectConfig)
	if err != nil {
		return err
	}
	if err = printSelectors(cmd.OutOrStdout(), artifact); err != nil {
		cmdLogger.Error("Failed to run the selectors command", err)
		return err
	}
	return nil
}

// printSelectors writes the interface table of an artifact.
func printSelectors(w io.Writer, artifact *types.BuildArtifact) error {
	switch artifact.Backend {
	case types.BackendLedger:
		table, err := artifact.LedgerInterface()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, colors.Bold("Constructors"))
		for _, spec := range table.Constructors() {
			fmt.Fprintf(w, "  %s  %s\n", spec.Selector, formatMessageSpec(spec))
		}
		fmt.Fprintln(w, colors.Bold("Messages"))
		for _, spec := range table.Messages() {
			fmt.Fprintf(w, "  %s  %s\n", spec.Selector, formatMessageSpec(spec))
		}
	case types.BackendEVM:
		iface, err := artifact.EVMInterface()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, colors.Bold("Functions"))
		for _, signature := range iface.Signatures() {
			method, err := iface.Function(signature)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  0x%x  %s\n", method.ID, signature)
		}
	}
	return nil
}

// formatMessageSpec renders a message as "label(arg: Type, ...) -> ReturnType".
func formatMessageSpec(spec types.MessageSpec) string {
	args := make([]string, 0, len(spec.Args))
	for _, arg := range spec.Args {
		args = append(args, arg.Label+": "+arg.TypeName)
	}
	s := spec.Label + "(" + strings.Join(args, ", ") + ")"
	if spec.ReturnType != "" {
		s += " -> " + spec.ReturnType
	}
	if spec.Payable {
		s += " payable"
	}
	return s
}
