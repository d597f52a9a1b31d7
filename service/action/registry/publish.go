package registry

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"

	"github.com/relforge/tagship/format"
)

// defaultTokenEnv is the environment variable the publish command reads
// the registry token from.
const defaultTokenEnv = "CARGO_REGISTRY_TOKEN"

// PublishInput defines parameters for publishing a package
type PublishInput struct {
	Dir        string   `json:"dir,omitempty" description:"package working directory"`
	Command    []string `json:"command,omitempty" description:"publish command (default: cargo publish --locked)"`
	TokenEnv   string   `json:"tokenEnv,omitempty" description:"environment variable the token is injected as"`
	Token      string   `json:"token,omitempty" description:"registry publish token"`
	Manifest   string   `json:"manifest,omitempty" description:"manifest path relative to dir (default Cargo.toml)"`
	Tag        string   `json:"tag,omitempty" description:"pushed tag to check against the manifest version"`
	AllowDirty bool     `json:"allowDirty,omitempty" description:"pass --allow-dirty to the publish command"`
	DryRun     bool     `json:"dryRun,omitempty" description:"pass --dry-run to the publish command"`
	TimeoutMs  int      `json:"timeoutMs,omitempty" description:"max wait time for the publish command"`
}

// Artifact describes a packaged file produced by the publish command.
type Artifact struct {
	URL       string          `json:"url"`
	Name      string          `json:"name"`
	Size      int64           `json:"size"`
	HumanSize format.ByteSize `json:"humanSize"`
}

// PublishOutput contains the publish result
type PublishOutput struct {
	Name             string      `json:"name"`
	Version          string      `json:"version"`
	Status           int         `json:"status"`
	AlreadyPublished bool        `json:"alreadyPublished,omitempty"`
	Artifacts        []*Artifact `json:"artifacts,omitempty"`
	Report           string      `json:"report,omitempty"`
	Stdout           string      `json:"stdout,omitempty"`
}

func (i *PublishInput) Init() {
	if i.TokenEnv == "" {
		i.TokenEnv = defaultTokenEnv
	}
	if i.Manifest == "" {
		i.Manifest = "Cargo.toml"
	}
	if len(i.Command) == 0 {
		i.Command = []string{"cargo", "publish", "--locked"}
	}
	if i.TimeoutMs == 0 {
		i.TimeoutMs = 600000
	}
}

func (i *PublishInput) Validate() error {
	if i.Dir == "" {
		return fmt.Errorf("dir is required")
	}
	if i.Token == "" && !i.DryRun {
		return fmt.Errorf("token is required")
	}
	return nil
}

// Publish runs the package-publish command with the registry token injected
// only into the process environment.
func (s *Service) Publish(ctx context.Context, input *PublishInput, output *PublishOutput) error {
	input.Init()
	if err := input.Validate(); err != nil {
		return err
	}

	fs := afs.New()
	manifestURL := url.Join(input.Dir, input.Manifest)
	data, err := fs.DownloadWithURL(ctx, manifestURL)
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", manifestURL, err)
	}
	manifest, err := parseManifest(data)
	if err != nil {
		return err
	}
	if err := checkTagVersion(input.Tag, manifest.Package.Version); err != nil {
		return err
	}
	output.Name = manifest.Package.Name
	output.Version = manifest.Package.Version

	command := strings.Join(input.Command, " ")
	if input.AllowDirty {
		command += " --allow-dirty"
	}
	if input.DryRun {
		command += " --dry-run"
	}

	env := map[string]string{}
	if input.Token != "" {
		env[input.TokenEnv] = input.Token
	}
	session, err := gosh.New(ctx, local.New(runner.WithEnvironment(env)))
	if err != nil {
		return fmt.Errorf("failed to open shell session: %w", err)
	}
	defer session.Close()

	stdout, status, err := session.Run(ctx, fmt.Sprintf("cd %s && %s", input.Dir, command), runner.WithTimeout(input.TimeoutMs))
	output.Stdout = stdout
	output.Status = status
	if status != 0 {
		if isAlreadyPublished(stdout) {
			output.AlreadyPublished = true
			output.Status = 0
		} else {
			if err == nil {
				err = fmt.Errorf("%s", strings.TrimSpace(stdout))
			}
			return fmt.Errorf("publish of %s %s exited with status %d: %w", output.Name, output.Version, status, err)
		}
	} else if err != nil {
		return fmt.Errorf("publish of %s %s failed: %w", output.Name, output.Version, err)
	}

	output.Artifacts = s.listArtifacts(ctx, fs, input.Dir)
	output.Report = publishReport(output)
	return nil
}

// isAlreadyPublished detects the registry rejecting a version that is
// already live; re-delivered tag events make this a benign outcome.
func isAlreadyPublished(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "already published") ||
		strings.Contains(lower, "already uploaded") ||
		strings.Contains(lower, "already exists")
}

// listArtifacts collects packaged files from the package output directory.
func (s *Service) listArtifacts(ctx context.Context, fs afs.Service, dir string) []*Artifact {
	packageDir := url.Join(dir, "target/package")
	objects, err := fs.List(ctx, packageDir)
	if err != nil {
		return nil
	}
	var artifacts []*Artifact
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.URL(), ".crate") {
			continue
		}
		artifacts = append(artifacts, &Artifact{
			URL:       object.URL(),
			Name:      path.Base(object.URL()),
			Size:      object.Size(),
			HumanSize: format.ByteSize(object.Size()),
		})
	}
	return artifacts
}

// publishReport renders a short human-readable summary.
func publishReport(output *PublishOutput) string {
	var b strings.Builder
	if output.AlreadyPublished {
		fmt.Fprintf(&b, "%s %s already published", output.Name, output.Version)
	} else {
		fmt.Fprintf(&b, "published %s %s", output.Name, output.Version)
	}
	for _, artifact := range output.Artifacts {
		fmt.Fprintf(&b, "\n  %s %s", artifact.Name, format.FormatBytes(uint32(artifact.Size)))
	}
	return b.String()
}
