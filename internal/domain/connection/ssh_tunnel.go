package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const sshDialTimeout = 30 * time.Second

// SSHTunnelConfig represents SSH tunnel configuration.
type SSHTunnelConfig struct {
	Enabled  bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	Host     string `json:"host" toml:"host" yaml:"host"`
	Port     int    `json:"port" toml:"port" yaml:"port"`
	Username string `json:"username" toml:"username" yaml:"username"`
	Password string `json:"password" toml:"password" yaml:"password"`

	// KeyPath is a private key file. Used together with Password when both are set.
	KeyPath string `json:"key_path" toml:"key_path" yaml:"key_path"`

	// KnownHosts is an OpenSSH known_hosts file. Host keys are not verified when empty.
	KnownHosts string `json:"known_hosts" toml:"known_hosts" yaml:"known_hosts"`
}

// Validate validates the tunnel parameters. A disabled tunnel is always valid.
func (c SSHTunnelConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if err := ValidateRequired("ssh.host", c.Host); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateRequired("ssh.username", c.Username); err != nil {
		errs = append(errs, err)
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "ssh.port",
			Message: "ssh.port must be between 1 and 65535",
			Value:   c.Port,
		})
	}
	if c.Password == "" && c.KeyPath == "" {
		errs = append(errs, &ValidationError{
			Field:   "ssh.password",
			Message: "ssh requires either password or key_path",
		})
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// SSHTunnel forwards a local port to a remote address through an SSH server.
type SSHTunnel struct {
	client    *ssh.Client
	listener  net.Listener
	localPort int
	cancel    context.CancelFunc
	mu        sync.Mutex
	closed    bool
}

// NewSSHTunnel connects to the SSH server and starts forwarding an
// auto-assigned local port to remoteHost:remotePort.
func NewSSHTunnel(ctx context.Context, config SSHTunnelConfig, remoteHost string, remotePort int) (*SSHTunnel, error) {
	if !config.Enabled {
		return nil, errors.New("ssh tunnel is not enabled")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate ssh config: %w", err)
	}

	slog.Debug("SSH: Creating tunnel",
		"op", "ssh_tunnel_create",
		"ssh_host", config.Host,
		"ssh_port", config.Port,
		"remote_host", remoteHost,
		"remote_port", remotePort,
		"username", config.Username)

	sshConfig, err := config.clientConfig()
	if err != nil {
		return nil, fmt.Errorf("create ssh config: %w", err)
	}

	sshAddr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	dialer := &net.Dialer{Timeout: sshDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", sshAddr)
	if err != nil {
		return nil, fmt.Errorf("connect to ssh server %s: %w", sshAddr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, sshAddr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create local listener: %w", err)
	}

	forwardCtx, cancel := context.WithCancel(context.Background())
	tunnel := &SSHTunnel{
		client:    client,
		listener:  listener,
		localPort: listener.Addr().(*net.TCPAddr).Port,
		cancel:    cancel,
	}
	go tunnel.acceptLoop(forwardCtx, net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)))

	slog.Debug("SSH: Tunnel created",
		"op", "ssh_tunnel_created",
		"local_port", tunnel.localPort,
		"remote_target", net.JoinHostPort(remoteHost, strconv.Itoa(remotePort)))

	return tunnel, nil
}

func (c SSHTunnelConfig) clientConfig() (*ssh.ClientConfig, error) {
	config := &ssh.ClientConfig{
		User:    c.Username,
		Timeout: sshDialTimeout,
	}

	if c.KnownHosts != "" {
		callback, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		config.HostKeyCallback = callback
	} else {
		slog.Warn("SSH: Host key verification disabled, set ssh.known_hosts to enable it",
			"ssh_host", c.Host)
		config.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	if c.KeyPath != "" {
		pem, err := os.ReadFile(c.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		key, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		config.Auth = append(config.Auth, ssh.PublicKeys(key))
	}
	if c.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(c.Password))
	}

	return config, nil
}

func (t *SSHTunnel) acceptLoop(ctx context.Context, remoteAddr string) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || t.IsClosed() {
				return
			}
			slog.Error("SSH: Failed to accept connection", "error", err)
			continue
		}
		go t.forward(conn, remoteAddr)
	}
}

func (t *SSHTunnel) forward(localConn net.Conn, remoteAddr string) {
	defer localConn.Close()

	remoteConn, err := t.client.Dial("tcp", remoteAddr)
	if err != nil {
		slog.Error("SSH: Failed to dial remote", "error", err, "remote", remoteAddr)
		return
	}
	defer remoteConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remoteConn, localConn)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(localConn, remoteConn)
		done <- struct{}{}
	}()

	// One direction finishing means the session is over.
	<-done
}

// LocalPort returns the local port number of the tunnel.
func (t *SSHTunnel) LocalPort() int {
	return t.localPort
}

// Close closes the SSH tunnel and releases resources.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()

	slog.Debug("SSH: Closing tunnel", "op", "ssh_tunnel_close", "local_port", t.localPort)

	return errors.Join(t.listener.Close(), t.client.Close())
}

// IsClosed returns whether the tunnel is closed.
func (t *SSHTunnel) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
