package vcs

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/relforge/tagship/model"
)

// CheckoutInput defines parameters for a repository checkout
type CheckoutInput struct {
	Repository         string `json:"repository" required:"true" description:"repository clone URL"`
	Ref                string `json:"ref,omitempty" description:"ref to fetch, e.g. refs/tags/v1.2.3"`
	SHA                string `json:"sha,omitempty" description:"exact commit to fetch; takes precedence over ref"`
	Dir                string `json:"dir,omitempty" description:"working directory; a temporary one is created when empty"`
	Depth              int    `json:"depth,omitempty" description:"fetch depth (default 1)"`
	Token              string `json:"token,omitempty" description:"access token for private repositories"`
	PersistCredentials bool   `json:"persistCredentials,omitempty" description:"write the auth header to the repository config"`
	Submodules         bool   `json:"submodules,omitempty" description:"initialise submodules after checkout"`
	TimeoutMs          int    `json:"timeoutMs,omitempty" description:"max wait time per git command"`
}

// CheckoutOutput describes the materialised working copy
type CheckoutOutput struct {
	Dir string `json:"dir"`
	SHA string `json:"sha,omitempty"`
	Tag string `json:"tag,omitempty"`
}

type commandError struct {
	status int
	output string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("git exited with status %d: %s", e.status, strings.TrimSpace(e.output))
}

func (i *CheckoutInput) Init() {
	if i.Depth <= 0 {
		i.Depth = 1
	}
	if i.TimeoutMs == 0 {
		i.TimeoutMs = 120000
	}
}

func (i *CheckoutInput) Validate() error {
	if i.Repository == "" {
		return fmt.Errorf("repository is required")
	}
	if i.Ref == "" && i.SHA == "" {
		return fmt.Errorf("either ref or sha is required")
	}
	return nil
}

// Checkout fetches the requested commit into the working directory.
func (s *Service) Checkout(ctx context.Context, input *CheckoutInput, output *CheckoutOutput) error {
	input.Init()
	if err := input.Validate(); err != nil {
		return err
	}

	dir := input.Dir
	if dir == "" {
		created, err := os.MkdirTemp("", "checkout-")
		if err != nil {
			return fmt.Errorf("failed to create working directory: %w", err)
		}
		dir = created
	}

	if _, err := s.run(ctx, fmt.Sprintf("git init -q %s", dir), input.TimeoutMs); err != nil {
		return redactToken(fmt.Errorf("failed to init repository: %w", err), input.Token)
	}
	if _, err := s.run(ctx, fmt.Sprintf("git -C %s remote add origin %s", dir, input.Repository), input.TimeoutMs); err != nil {
		return redactToken(fmt.Errorf("failed to add remote: %w", err), input.Token)
	}

	auth := ""
	if input.Token != "" {
		header := authHeader(input.Token)
		if input.PersistCredentials {
			cmd := fmt.Sprintf("git -C %s config http.%s.extraheader '%s'", dir, input.Repository, header)
			if _, err := s.run(ctx, cmd, input.TimeoutMs); err != nil {
				return redactToken(fmt.Errorf("failed to persist credentials: %w", err), input.Token)
			}
		} else {
			// Passed per invocation only; nothing lands in .git/config.
			auth = fmt.Sprintf("-c http.%s.extraheader='%s' ", input.Repository, header)
		}
	}

	target := input.SHA
	if target == "" {
		target = input.Ref
	}
	fetch := fmt.Sprintf("git -C %s %sfetch -q --depth %d origin %s", dir, auth, input.Depth, target)
	if _, err := s.run(ctx, fetch, input.TimeoutMs); err != nil {
		return redactToken(fmt.Errorf("failed to fetch %s: %w", target, err), input.Token)
	}
	if _, err := s.run(ctx, fmt.Sprintf("git -C %s checkout -q FETCH_HEAD", dir), input.TimeoutMs); err != nil {
		return redactToken(fmt.Errorf("failed to checkout FETCH_HEAD: %w", err), input.Token)
	}

	if input.Submodules {
		cmd := fmt.Sprintf("git -C %s %ssubmodule update --init --recursive --depth %d", dir, auth, input.Depth)
		if _, err := s.run(ctx, cmd, input.TimeoutMs); err != nil {
			return redactToken(fmt.Errorf("failed to init submodules: %w", err), input.Token)
		}
	}

	sha, err := s.run(ctx, fmt.Sprintf("git -C %s rev-parse HEAD", dir), input.TimeoutMs)
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	output.Dir = dir
	output.SHA = strings.TrimSpace(sha)
	output.Tag = tagFromRef(input.Ref)
	return nil
}

// authHeader builds the basic auth header git sends with each request.
func authHeader(token string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return "AUTHORIZATION: basic " + encoded
}

// tagFromRef extracts the tag name when the ref points at one.
func tagFromRef(ref string) string {
	refEvent := model.ParseRef(ref)
	if refEvent.Kind == model.RefKindTag {
		return refEvent.Name
	}
	return ""
}

// redactToken keeps raw tokens out of error messages and logs.
func redactToken(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	message := strings.ReplaceAll(err.Error(), token, "***")
	message = strings.ReplaceAll(message, base64.StdEncoding.EncodeToString([]byte("x-access-token:"+token)), "***")
	return fmt.Errorf("%s", message)
}
