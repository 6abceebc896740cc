package transport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/crypto/ssh"

	"github.com/psbr27/testPilotOne/internal/types"
)

// SSH pools one *ssh.Client per host name, reconnecting with a bounded
// constant backoff of retry_delay between dial attempts when a session
// fails to open (spec.md §4.5's
// ssh_settings.max_retries / retry_delay).
type SSH struct {
	settings types.SSHSettings

	mu      sync.Mutex
	clients map[string]*ssh.Client
}

// NewSSH returns an SSH transport governed by settings.
func NewSSH(settings types.SSHSettings) *SSH {
	return &SSH{settings: settings, clients: make(map[string]*ssh.Client)}
}

func (s *SSH) Exec(ctx context.Context, host types.Host, command string) (RawOutput, error) {
	client, err := s.clientFor(ctx, host)
	if err != nil {
		return RawOutput{}, &types.TransportError{Host: host.Name, Err: err}
	}

	start := time.Now()
	session, err := client.NewSession()
	if err != nil {
		s.drop(host.Name)
		return RawOutput{}, &types.TransportError{Host: host.Name, Err: fmt.Errorf("opening session: %w", err)}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := runWithContext(ctx, session, command)
	out := RawOutput{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if exitErr, ok := runErr.(*ssh.ExitError); ok {
		out.ExitCode = exitErr.ExitStatus()
		return out, nil
	}
	if runErr != nil {
		return out, &types.TransportError{Host: host.Name, Err: runErr}
	}
	return out, nil
}

// runWithContext runs command on session and aborts it if ctx is
// canceled before the command finishes, the SSH analog of
// exec.CommandContext.
func runWithContext(ctx context.Context, session *ssh.Session, command string) error {
	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return ctx.Err()
	}
}

func (s *SSH) clientFor(ctx context.Context, host types.Host) (*ssh.Client, error) {
	s.mu.Lock()
	if c, ok := s.clients[host.Name]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	client, err := s.connectWithRetry(ctx, host)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.clients[host.Name] = client
	s.mu.Unlock()
	return client, nil
}

func (s *SSH) connectWithRetry(ctx context.Context, host types.Host) (*ssh.Client, error) {
	cfg, err := sshClientConfig(host, s.settings)
	if err != nil {
		return nil, err
	}

	maxRetries := s.settings.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	delay := time.Duration(s.settings.RetryDelayS) * time.Second
	if delay <= 0 {
		delay = time.Second
	}

	operation := func() (*ssh.Client, error) {
		client, err := ssh.Dial("tcp", host.Addr(), cfg)
		if err != nil {
			log.Debugw("ssh dial failed, will retry", "host", host.Name, "err", err)
			return nil, err
		}
		return client, nil
	}

	client, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(uint(maxRetries)),
	)
	if err != nil {
		return nil, fmt.Errorf("dialing %s after %d attempts: %w", host.Addr(), maxRetries, err)
	}
	log.Infow("ssh connected", "host", host.Name)
	return client, nil
}

func sshClientConfig(host types.Host, settings types.SSHSettings) (*ssh.ClientConfig, error) {
	var auth ssh.AuthMethod
	switch {
	case host.Auth.Password != "":
		auth = ssh.Password(host.Auth.Password)
	case host.Auth.KeyPath != "":
		key, err := os.ReadFile(host.Auth.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading key_path %s: %w", host.Auth.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", host.Auth.KeyPath, err)
		}
		auth = ssh.PublicKeys(signer)
	default:
		return nil, fmt.Errorf("host %q has no password or key_path configured", host.Name)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	timeout := time.Duration(settings.TimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            host.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

func (s *SSH) drop(hostName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[hostName]; ok {
		_ = c.Close()
		delete(s.clients, hostName)
	}
}

func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, c := range s.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.clients, name)
	}
	return firstErr
}
