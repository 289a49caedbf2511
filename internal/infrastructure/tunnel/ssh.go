// Package tunnel forwards a local port to a database reachable only through
// an SSH bastion.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

var ErrClosed = errors.New("tunnel closed")

type Config struct {
	// SSHAddr is the bastion, host:port.
	SSHAddr  string
	User     string
	Password string
	// Remote is the database address as seen from the bastion.
	Remote  string
	Timeout time.Duration
}

// Tunnel listens on 127.0.0.1 and pipes every accepted connection to
// Remote over one SSH session.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string
	log      *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open dials the bastion and starts forwarding on an ephemeral local port.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Tunnel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	clientCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{ssh.Password(cfg.Password)},
		// bastions are operator-provided and not pinned
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	var d net.Dialer
	d.Timeout = timeout
	conn, err := d.DialContext(ctx, "tcp", cfg.SSHAddr)
	if err != nil {
		return nil, fmt.Errorf("dial ssh %s: %w", cfg.SSHAddr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.SSHAddr, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", cfg.SSHAddr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("listen local: %w", err)
	}

	t := &Tunnel{client: client, listener: ln, remote: cfg.Remote, log: log}
	t.wg.Add(1)
	go t.serve()
	log.Info("ssh tunnel open", zap.String("bastion", cfg.SSHAddr), zap.String("local", t.LocalAddr()), zap.String("remote", cfg.Remote))
	return t, nil
}

// LocalAddr is the 127.0.0.1:port end clients connect to.
func (t *Tunnel) LocalAddr() string { return t.listener.Addr().String() }

func (t *Tunnel) serve() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			return
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.forward(local)
		}()
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer local.Close()
	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		t.log.Error("ssh tunnel dial remote", zap.String("remote", t.remote), zap.Error(err))
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	pipe := func(dst io.Writer, src io.Reader) {
		_, _ = io.Copy(dst, src)
		done <- struct{}{}
	}
	go pipe(remote, local)
	go pipe(local, remote)
	<-done
}

// Close stops accepting, tears down the SSH session and waits for in-flight
// forwards to end.
func (t *Tunnel) Close() error {
	err := ErrClosed
	t.closeOnce.Do(func() {
		lerr := t.listener.Close()
		cerr := t.client.Close()
		t.wg.Wait()
		err = errors.Join(lerr, cerr)
		if err == nil {
			t.log.Info("ssh tunnel closed", zap.String("remote", t.remote))
		}
	})
	return err
}
