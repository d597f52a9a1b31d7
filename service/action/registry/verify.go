package registry

import (
	"context"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	sgdiff "github.com/sourcegraph/go-diff/diff"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// VerifyInput defines parameters for comparing local and published metadata
type VerifyInput struct {
	Dir       string `json:"dir,omitempty" description:"package working directory"`
	Manifest  string `json:"manifest,omitempty" description:"manifest path relative to dir (default Cargo.toml)"`
	Published string `json:"published,omitempty" description:"published manifest content"`
	Local     string `json:"local,omitempty" description:"local manifest content; read from dir when empty"`
	Context   int    `json:"context,omitempty" description:"unified diff context lines (default 3)"`
}

// VerifyOutput reports how the local manifest differs from the published one
type VerifyOutput struct {
	Match   bool   `json:"match"`
	Diff    string `json:"diff,omitempty"`
	Hunks   int    `json:"hunks,omitempty"`
	Added   int    `json:"added,omitempty"`
	Deleted int    `json:"deleted,omitempty"`
	Report  string `json:"report,omitempty"`
}

// Verify diffs the local package manifest against the published metadata.
func (s *Service) Verify(ctx context.Context, input *VerifyInput, output *VerifyOutput) error {
	local := input.Local
	if local == "" {
		if input.Dir == "" {
			return fmt.Errorf("either local or dir is required")
		}
		manifest := input.Manifest
		if manifest == "" {
			manifest = "Cargo.toml"
		}
		fs := afs.New()
		data, err := fs.DownloadWithURL(ctx, url.Join(input.Dir, manifest))
		if err != nil {
			return fmt.Errorf("failed to read local manifest: %w", err)
		}
		local = string(data)
	}

	if local == input.Published {
		output.Match = true
		output.Report = "local and published metadata match"
		return nil
	}

	contextLines := input.Context
	if contextLines <= 0 {
		contextLines = 3
	}
	unified := difflib.UnifiedDiff{
		A:        difflib.SplitLines(input.Published),
		B:        difflib.SplitLines(local),
		FromFile: "published",
		ToFile:   "local",
		Context:  contextLines,
	}
	patch, err := difflib.GetUnifiedDiffString(unified)
	if err != nil {
		return fmt.Errorf("failed to diff metadata: %w", err)
	}
	output.Diff = patch

	fileDiff, err := sgdiff.ParseFileDiff([]byte(patch))
	if err != nil {
		return fmt.Errorf("failed to parse metadata diff: %w", err)
	}
	stat := fileDiff.Stat()
	output.Hunks = len(fileDiff.Hunks)
	output.Added = int(stat.Added + stat.Changed)
	output.Deleted = int(stat.Deleted + stat.Changed)
	output.Report = fmt.Sprintf("published metadata drifted: %d hunk(s), +%d -%d",
		output.Hunks, output.Added, output.Deleted)
	return nil
}
