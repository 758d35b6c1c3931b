package cmd

import (
	"fmt"
	"io"

	"github.com/Masterminds/semver"
	"github.com/crytic/schlau/compilation/platforms"
	"github.com/crytic/schlau/version"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command that displays build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	Long: `Print the version of schlau, the commit and Go version it was built from and, with --compilers, the versions
of the contract compilers found on the PATH`,
	Args:         cmdValidateNoArgs("version"),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), version.GetInfo().String())
		compilers, err := cmd.Flags().GetBool("compilers")
		if err != nil {
			return err
		}
		if compilers {
			printCompilerVersions(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("compilers", false, "also print the versions of solc, solang and cargo-contract")
	rootCmd.AddCommand(versionCmd)
}

// printCompilerVersions prints the version of every supported compiler, or why it could not be determined.
func printCompilerVersions(w io.Writer) {
	compilers := []struct {
		name    string
		version func() (*semver.Version, error)
	}{
		{"cargo-contract", platforms.GetSystemCargoContractVersion},
		{"solang", platforms.GetSystemSolangVersion},
		{"solc", platforms.GetSystemSolcVersion},
	}
	for _, c := range compilers {
		v, err := c.version()
		if err != nil {
			fmt.Fprintf(w, "  %-15s unavailable (%v)\n", c.name+":", err)
			continue
		}
		fmt.Fprintf(w, "  %-15s %s\n", c.name+":", v)
	}
}
