package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tagship "github.com/relforge/tagship"
	"github.com/relforge/tagship/internal/watcher"
	"github.com/relforge/tagship/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch <definitions-dir>",
	Short: "Watch definitions and dispatch ref events",
	Long: `Watch registers every YAML definition in the directory, hot-reloads a
definition whenever its file changes and dispatches runs for ref events read
from stdin. Each stdin line is a full ref optionally followed by a SHA:

    refs/tags/v1.2.3 0f0f0f

Runs start for every registered release whose trigger matches the ref.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchDefinitions(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchDefinitions(ctx context.Context, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	srv := tagship.New(
		tagship.WithMetaBaseURL(absDir),
		tagship.WithProcessorWorkers(viper.GetInt("processor.workers")),
	)
	runtime := srv.Runtime()
	ctx, cancel := signal.NotifyContext(srv.NewContext(ctx), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err = runtime.Start(ctx); err != nil {
		return err
	}
	defer runtime.Shutdown(ctx)

	if err = registerAll(ctx, runtime, absDir); err != nil {
		return err
	}

	fsWatcher, err := watcher.New(watcher.DefaultConfig(absDir))
	if err != nil {
		return err
	}
	fsWatcher.Start()
	defer fsWatcher.Stop()

	events := readRefEvents(ctx, os.Stdin)
	fmt.Printf("watching %v, reading ref events from stdin\n", absDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case name := <-fsWatcher.Changes():
			if err := reload(ctx, runtime, absDir, name); err != nil {
				fmt.Fprintf(os.Stderr, "%v: %v\n", name, err)
				continue
			}
			fmt.Printf("reloaded %v\n", name)
		case refEvent, ok := <-events:
			if !ok {
				return nil
			}
			runs, err := runtime.Dispatch(ctx, refEvent)
			if err != nil {
				fmt.Fprintf(os.Stderr, "dispatch %v: %v\n", refEvent.Ref, err)
				continue
			}
			if len(runs) == 0 {
				fmt.Printf("%v: no release matched\n", refEvent.Ref)
				continue
			}
			for _, aRun := range runs {
				fmt.Printf("%v: started run %v (%v)\n", refEvent.Ref, aRun.ID, aRun.Release.Name)
			}
		}
	}
}

// registerAll adds every YAML definition in dir to the trigger index.
func registerAll(ctx context.Context, runtime *tagship.Runtime, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isDefinition(entry.Name()) {
			continue
		}
		aRelease, err := runtime.RegisterRelease(ctx, entry.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v: %v\n", entry.Name(), err)
			continue
		}
		fmt.Printf("registered %v (%v)\n", entry.Name(), aRelease.Name)
	}
	return nil
}

// reload re-parses the changed definition and swaps it in the trigger index.
func reload(ctx context.Context, runtime *tagship.Runtime, dir, name string) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return runtime.RefreshRelease(name)
		}
		return err
	}
	return runtime.UpsertDefinition(name, data)
}

func isDefinition(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// readRefEvents parses "ref [sha]" lines into ref events; the channel closes
// on EOF.
func readRefEvents(ctx context.Context, input *os.File) <-chan model.RefEvent {
	events := make(chan model.RefEvent)
	scanner := bufio.NewScanner(input)
	go func() {
		defer close(events)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			refEvent := model.ParseRef(fields[0])
			if len(fields) > 1 {
				refEvent.SHA = fields[1]
			}
			refEvent.ReceivedAt = time.Now()
			select {
			case events <- refEvent:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events
}
