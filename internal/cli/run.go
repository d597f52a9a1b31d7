package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tagship "github.com/relforge/tagship"
	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/policy"
	"github.com/relforge/tagship/runtime/execution"
)

var runFlags struct {
	ref     string
	sha     string
	repo    string
	dryRun  bool
	params  []string
	timeout time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Run a release pipeline definition",
	Long: `Run starts a single run of the given release definition and waits for it
to finish. With --ref the run is bound to the pushed ref, so ${tag}, ${sha}
and ${repository} resolve inside the pipeline; --dry-run resolves every step
input without invoking any action.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelease(cmd.Context(), args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.ref, "ref", "", "full ref that triggered the run, i.e. refs/tags/v1.2.3")
	runCmd.Flags().StringVar(&runFlags.sha, "sha", "", "commit SHA the ref points at")
	runCmd.Flags().StringVar(&runFlags.repo, "repo", "", "repository clone URL")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "resolve inputs but skip action invocation")
	runCmd.Flags().StringArrayVar(&runFlags.params, "param", nil, "initial state entry, key=value (repeatable)")
	runCmd.Flags().DurationVar(&runFlags.timeout, "timeout", 10*time.Minute, "maximum time to wait for the run")
	rootCmd.AddCommand(runCmd)
}

func runRelease(ctx context.Context, location string) error {
	data, err := os.ReadFile(location)
	if err != nil {
		return fmt.Errorf("failed to read definition %v: %w", location, err)
	}

	srv := tagship.New(tagship.WithProcessorWorkers(viper.GetInt("processor.workers")))
	runtime := srv.Runtime()
	ctx = srv.NewContext(ctx)
	if runFlags.dryRun {
		ctx = policy.WithPolicy(ctx, policy.FromConfig(&policy.Config{Mode: policy.ModeDryRun}))
	}
	if err = runtime.Start(ctx); err != nil {
		return err
	}
	defer runtime.Shutdown(ctx)

	aRelease, err := runtime.DecodeYAMLRelease(data)
	if err != nil {
		return fmt.Errorf("failed to decode definition %v: %w", location, err)
	}
	if issues := aRelease.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid definition %v: %v", location, issues)
	}

	var refEvent *model.RefEvent
	if runFlags.ref != "" {
		ev := model.ParseRef(runFlags.ref)
		ev.SHA = runFlags.sha
		ev.Repository = runFlags.repo
		ev.ReceivedAt = time.Now()
		refEvent = &ev
	}
	initialState, err := parseParams(runFlags.params)
	if err != nil {
		return err
	}

	aRun, wait, err := runtime.StartRun(ctx, aRelease, refEvent, initialState)
	if err != nil {
		return err
	}
	fmt.Printf("run %v started for release %q\n", aRun.ID, aRelease.Name)

	output, err := wait(ctx, runFlags.timeout)
	if err != nil {
		return err
	}
	return reportRun(output)
}

// parseParams turns repeated key=value flags into the run's initial state.
func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	state := map[string]interface{}{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		state[key] = value
	}
	return state, nil
}

func reportRun(output *execution.RunOutput) error {
	if output.Timeout {
		return fmt.Errorf("run %v timed out", output.RunID)
	}
	encoded, _ := json.MarshalIndent(output.Output, "", "  ")
	fmt.Printf("run %v finished: %v (%v)\n%s\n", output.RunID, output.State, output.TimeTaken, encoded)
	if output.State != execution.StateCompleted {
		for stepID, message := range output.Errors {
			fmt.Fprintf(os.Stderr, "step %v: %v\n", stepID, message)
		}
		return fmt.Errorf("run %v ended in state %v", output.RunID, output.State)
	}
	return nil
}
