package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tagship "github.com/relforge/tagship"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition.yaml> [more.yaml ...]",
	Short: "Validate release pipeline definitions",
	Long: `Validate decodes each definition and reports structural issues: missing
actions, duplicate step IDs, unknown dependsOn references and dependency
cycles. The exit status is non-zero when any definition has issues.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runtime := tagship.New().Runtime()
		failed := 0
		for _, location := range args {
			data, err := os.ReadFile(location)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v: %v\n", location, err)
				failed++
				continue
			}
			aRelease, err := runtime.DecodeYAMLRelease(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v: %v\n", location, err)
				failed++
				continue
			}
			issues := aRelease.Validate()
			if len(issues) == 0 {
				fmt.Printf("%v: ok\n", location)
				continue
			}
			failed++
			for _, issue := range issues {
				fmt.Fprintf(os.Stderr, "%v: %v\n", location, issue)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%v definition(s) failed validation", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
