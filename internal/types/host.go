package types

import "fmt"

// CLIKind identifies which Kubernetes CLI a host uses for pod exec.
type CLIKind string

const (
	CLIKubectl CLIKind = "kubectl"
	CLIOc      CLIKind = "oc"
	CLIUnknown CLIKind = ""
)

// Auth holds exactly one of password or key-path authentication for SSH.
type Auth struct {
	Password string `json:"password,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
}

// Host describes one remote target the orchestrator can dispatch steps to.
type Host struct {
	Name      string  `json:"name"`
	Hostname  string  `json:"hostname,omitempty"`
	Username  string  `json:"username,omitempty"`
	Auth      Auth    `json:"auth"`
	Port      int     `json:"port,omitempty"`
	Namespace string  `json:"namespace,omitempty"`
	CLI       CLIKind `json:"cli,omitempty"`
}

// Validate checks the host invariant: exactly one of password/key_path when
// SSH is in use. useSSH is passed in because it is a config-level, not
// host-level, setting.
func (h Host) Validate(useSSH bool) error {
	if !useSSH {
		return nil
	}
	hasPassword := h.Auth.Password != ""
	hasKey := h.Auth.KeyPath != ""
	if hasPassword == hasKey {
		return fmt.Errorf("host %q: exactly one of password or key_path must be set when use_ssh is true", h.Name)
	}
	return nil
}

// Addr returns "hostname:port", defaulting the port to 22.
func (h Host) Addr() string {
	port := h.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", h.Hostname, port)
}
