// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// probeTimeout bounds the whole probe: dial, handshake, and command.
const probeTimeout = 5 * time.Second

// Probe dials the SSH endpoint, authenticates with the password, and runs
// `id -u` to confirm the session executes commands. It returns the uid the
// server reports.
func Probe(ctx context.Context, addr, user, password string) (string, error) {
	cfg := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{ssh.Password(password)},
		// The container regenerates its host key whenever openssh-server is
		// reinstalled, so there is no stable key to pin.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         probeTimeout,
	}

	d := net.Dialer{Timeout: cfg.Timeout}
	tcp, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}
	// The ssh layer has no context support of its own; a connection
	// deadline bounds the handshake and the command instead.
	deadline := time.Now().Add(probeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = tcp.SetDeadline(deadline)

	conn, chans, reqs, err := ssh.NewClientConn(tcp, addr, cfg)
	if err != nil {
		tcp.Close()
		return "", fmt.Errorf("ssh handshake with %s as %s: %w", addr, user, err)
	}
	client := ssh.NewClient(conn, chans, reqs)
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open ssh session on %s: %w", addr, err)
	}
	defer sess.Close()

	out, err := sess.Output("id -u")
	if err != nil {
		return "", fmt.Errorf("run probe command on %s: %w", addr, err)
	}
	return strings.TrimSpace(string(out)), nil
}
