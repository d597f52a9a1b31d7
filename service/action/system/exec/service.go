package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"

	"github.com/relforge/tagship/service/action/system"
)

const defaultCommandTimeout = time.Minute

// Service executes shell commands on a local or remote host. Sessions are
// keyed by host URL and reused across invocations.
type Service struct {
	mux      sync.Mutex
	sessions map[string]*gosh.Service
}

// New creates a new Service instance
func New() *Service {
	return &Service{sessions: map[string]*gosh.Service{}}
}

// Execute runs each command as an independent shell invocation against the
// target host, accumulating per-command and combined output.
func (s *Service) Execute(ctx context.Context, input *Input, output *Output) error {
	input.Init()

	session, err := s.session(ctx, input.Host, input.Env)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if input.Directory != "" {
		if _, _, err := session.Run(ctx, "cd "+input.Directory); err != nil {
			return fmt.Errorf("failed to change directory: %w", err)
		}
	}

	abortOnError := input.AbortOnError == nil || *input.AbortOnError
	timeout := time.Duration(input.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = defaultCommandTimeout
	}

	for _, cmd := range input.Commands {
		stdout, stderr, status := s.runCommand(ctx, session, cmd, timeout)
		output.Append(&Command{Input: cmd, Output: stdout, Stderr: stderr, Status: status})
		if abortOnError && status != 0 {
			break
		}
	}
	output.Stdout = strings.TrimSpace(output.Stdout)
	output.Stderr = strings.TrimSpace(output.Stderr)
	return nil
}

func (s *Service) runCommand(ctx context.Context, session *gosh.Service, command string, timeout time.Duration) (string, string, int) {
	started := time.Now()
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > timeout && err == nil {
		err = fmt.Errorf("command %v timed out after: %s", command, elapsed)
	}
	if status == 0 {
		return stdout, "", status
	}
	if stdout == "" && err != nil {
		stdout = err.Error()
	}
	// non-zero exit, surface everything on stderr
	return "", stdout, status
}

func (s *Service) session(ctx context.Context, host *system.Host, env map[string]string) (*gosh.Service, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if session, ok := s.sessions[host.URL]; ok {
		return session, nil
	}

	var options []runner.Option
	if len(env) > 0 {
		options = append(options, runner.WithEnvironment(env))
	}

	var session *gosh.Service
	var err error
	if url.Host(host.URL) == "localhost" {
		session, err = gosh.New(ctx, local.New(options...))
	} else {
		config, cfgErr := s.sshConfig(ctx, host)
		if cfgErr != nil {
			return nil, fmt.Errorf("failed to get SSH config: %w", cfgErr)
		}
		sshHost := url.Host(host.URL)
		if !strings.Contains(sshHost, ":") {
			sshHost += ":22"
		}
		session, err = gosh.New(ctx, rssh.New(sshHost, config, options...))
	}
	if err != nil {
		return nil, err
	}
	s.sessions[host.URL] = session
	return session, nil
}

func (s *Service) sshConfig(ctx context.Context, host *system.Host) (*ssh.ClientConfig, error) {
	credentials := host.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// Close releases every session held by this service.
func (s *Service) Close(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for id, session := range s.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", id, err))
		}
	}
	s.sessions = map[string]*gosh.Service{}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}
