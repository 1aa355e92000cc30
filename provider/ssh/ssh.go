// Package ssh implements chainnet sessions over SSH.
package ssh

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/mistifyio/chainnet"
	"github.com/mistifyio/chainnet/pkg/hostport"
	log "github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"gopkg.in/tomb.v2"
)

// Defaults used when a Config leaves them empty
const (
	DefaultUser    = "admin"
	DefaultPort    = "22"
	DefaultTimeout = 30 * time.Second
)

// ErrNoAuth is returned when neither a key file nor an agent is available
var ErrNoAuth = errors.New("no ssh key file or agent available")

// Config describes how to reach the nodes
type Config struct {
	User       string        `yaml:"user"`
	Port       string        `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"`
	KeyFiles   []string      `yaml:"key_files"`
	KnownHosts string        `yaml:"known_hosts"`
	// AgentSocket defaults to $SSH_AUTH_SOCK
	AgentSocket string `yaml:"agent_socket"`
}

// Dialer opens SSH sessions to nodes
type Dialer struct {
	port    string
	timeout time.Duration
	client  *gossh.ClientConfig
}

// NewDialer builds a Dialer from config, loading keys and host key policy up
// front. Without a known hosts file any host key is accepted.
func NewDialer(config Config) (*Dialer, error) {
	if config.User == "" {
		config.User = DefaultUser
	}
	if config.Port == "" {
		config.Port = DefaultPort
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.AgentSocket == "" {
		config.AgentSocket = os.Getenv("SSH_AUTH_SOCK")
	}

	auth, err := authMethods(config)
	if err != nil {
		return nil, err
	}

	hostKey, err := hostKeyCallback(config.KnownHosts)
	if err != nil {
		return nil, err
	}

	return &Dialer{
		port:    config.Port,
		timeout: config.Timeout,
		client: &gossh.ClientConfig{
			User:            config.User,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         config.Timeout,
		},
	}, nil
}

func authMethods(config Config) ([]gossh.AuthMethod, error) {
	methods := []gossh.AuthMethod{}

	signers := []gossh.Signer{}
	for _, file := range config.KeyFiles {
		signer, err := loadKey(file)
		if err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, gossh.PublicKeys(signers...))
	}

	if config.AgentSocket != "" {
		conn, err := net.Dial("unix", config.AgentSocket)
		if err != nil {
			log.WithFields(log.Fields{
				"socket": config.AgentSocket,
				"error":  err,
			}).Warn("unable to reach ssh agent")
		} else {
			methods = append(methods, gossh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if len(methods) == 0 {
		return nil, ErrNoAuth
	}
	return methods, nil
}

func loadKey(file string) (gossh.Signer, error) {
	pem, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	signer, err := gossh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return signer, nil
}

func hostKeyCallback(knownHosts string) (gossh.HostKeyCallback, error) {
	if knownHosts == "" {
		return gossh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(knownHosts)
}

// Dial connects to the node's address
func (d *Dialer) Dial(ctx context.Context, node *chainnet.Node) (chainnet.Session, error) {
	if node.Address == "" {
		return nil, fmt.Errorf("instance %s has no address", node.ID)
	}
	addr, err := hostport.Join(node.Address, d.port)
	if err != nil {
		return nil, err
	}

	nd := net.Dialer{Timeout: d.timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// The handshake has no context of its own
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := gossh.NewClientConn(conn, addr, d.client)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return &Session{client: gossh.NewClient(c, chans, reqs)}, nil
}

// Session is a connection to one node. Each Exec runs on its own channel.
type Session struct {
	client *gossh.Client
}

// Exec runs command and streams its output lines to out. A non-zero exit
// status is an error.
func (s *Session) Exec(ctx context.Context, command string, out chainnet.OutputFunc) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return err
	}
	if err := sess.Start(command); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sess.Signal(gossh.SIGKILL)
			_ = sess.Close()
		case <-done:
		}
	}()

	var t tomb.Tomb
	t.Go(func() error {
		t.Go(func() error {
			return scanLines(stderr, chainnet.Stderr, out)
		})
		return scanLines(stdout, chainnet.Stdout, out)
	})
	readErr := t.Wait()

	if err := sess.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return exitError(err)
	}
	return readErr
}

// Close closes the connection
func (s *Session) Close() error {
	return s.client.Close()
}

func exitError(err error) error {
	var exit *gossh.ExitError
	if errors.As(err, &exit) {
		return fmt.Errorf("exit status %d", exit.ExitStatus())
	}
	return err
}

// MaxLine is the longest line passed to an OutputFunc. Longer lines are
// split into MaxLine sized pieces.
const MaxLine = 1024 * 1024

// scanLines passes each line read from r to out. r is read to the end, even
// after a read error.
func scanLines(r io.Reader, stream chainnet.Stream, out chainnet.OutputFunc) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	split := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(line) > 0 {
				out(stream, string(line))
			}
			if err == io.EOF {
				return nil
			}
			_, _ = io.Copy(io.Discard, r)
			return err
		}

		line = append(line, chunk...)
		if isPrefix {
			if len(line) >= MaxLine {
				out(stream, string(line))
				line = line[:0]
				split = true
			}
			continue
		}

		// A split line ending exactly on a piece boundary leaves nothing
		if len(line) > 0 || !split {
			out(stream, string(line))
		}
		line = line[:0]
		split = false
	}
}
