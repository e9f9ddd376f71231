// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"watchdogctl/internal/config"
	"watchdogctl/internal/engine"
	"watchdogctl/internal/hoststate"
	"watchdogctl/internal/issue"
)

// PromptFunc asks the operator for the account password. A nil prompt marks
// the run as non-interactive.
type PromptFunc func(account string) (string, error)

// Provisioner sets up SSH access into the container. Construct with New;
// the zero value is not usable.
type Provisioner struct {
	eng    *engine.Engine
	cfg    config.RemoteSection
	prompt PromptFunc

	// invokingUser resolves the human behind the run. Replaced in tests.
	invokingUser func() (*hoststate.User, error)
}

// New creates a Provisioner. prompt may be nil when no terminal is
// available; a missing password then fails instead of hanging on a read.
func New(eng *engine.Engine, cfg config.RemoteSection, prompt PromptFunc) *Provisioner {
	return &Provisioner{
		eng:          eng,
		cfg:          cfg,
		prompt:       prompt,
		invokingUser: hoststate.InvokingUser,
	}
}

// Ensure brings the container to the point where `ssh -p <host port>` works:
// sshd installed and configured, an account bound to the invoking uid, a
// password set, and the host public key authorized. The port mapping is a
// precondition, not something Ensure can fix; mappings are fixed at
// container creation.
func (p *Provisioner) Ensure(ctx context.Context, name config.ContainerName, sshPort engine.NetworkPort) error {
	hostPort, mapped, err := p.eng.BoundHostPort(ctx, name, sshPort)
	if err != nil {
		return err
	}
	if !mapped {
		return sshPortNotMappedError(name, sshPort)
	}
	slog.Debug("ssh port mapping present", "container", name, "host_port", hostPort)

	if err := p.installServer(ctx, name); err != nil {
		return err
	}
	if err := p.configureSSHD(ctx, name); err != nil {
		return err
	}
	user, err := p.resolveAccount(ctx, name)
	if err != nil {
		return err
	}
	if err := p.setPassword(ctx, name, user); err != nil {
		return err
	}
	if err := p.authorizeKey(ctx, name, user); err != nil {
		return err
	}
	if err := p.restartSSHD(ctx, name); err != nil {
		return err
	}
	slog.Info("remote access ready", "container", name, "user", user, "port", hostPort)
	return nil
}

// installServer installs sshd only when absent, so a reprovision run makes
// no package-manager calls.
func (p *Provisioner) installServer(ctx context.Context, name config.ContainerName) error {
	script := "dpkg -s openssh-server >/dev/null 2>&1 || { apt-get update && apt-get install -y openssh-server; }"
	spec := engine.ExecSpec{Env: map[string]string{"DEBIAN_FRONTEND": "noninteractive"}}
	if err := p.eng.ExecScriptStreaming(ctx, name, spec, script); err != nil {
		return fmt.Errorf("install openssh-server in %s: %w", name, err)
	}
	return nil
}

// sshdConfigScript pins the two directives remote access depends on. The
// sed handles present or commented directives, the grep appends when the
// stock file carries neither; re-running leaves the file byte-identical.
const sshdConfigScript = `set -e
f=/etc/ssh/sshd_config
sed -i 's/^#\?PermitRootLogin .*/PermitRootLogin no/' "$f"
grep -qx 'PermitRootLogin no' "$f" || echo 'PermitRootLogin no' >>"$f"
sed -i 's/^#\?PasswordAuthentication .*/PasswordAuthentication yes/' "$f"
grep -qx 'PasswordAuthentication yes' "$f" || echo 'PasswordAuthentication yes' >>"$f"`

func (p *Provisioner) configureSSHD(ctx context.Context, name config.ContainerName) error {
	if _, err := p.eng.ExecScript(ctx, name, engine.ExecSpec{}, sshdConfigScript); err != nil {
		return fmt.Errorf("configure sshd in %s: %w", name, err)
	}
	return nil
}

// resolveAccount returns the container account to grant access to. The
// desired name wins when it already exists; a foreign account already bound
// to the host uid is adopted rather than duplicated; only when neither
// holds is a new account created with the host uid.
func (p *Provisioner) resolveAccount(ctx context.Context, name config.ContainerName) (string, error) {
	host, err := p.invokingUser()
	if err != nil {
		return "", fmt.Errorf("resolve invoking user: %w", err)
	}
	desired := p.cfg.User
	if desired == "" {
		desired = host.Name
	}

	if _, err := p.eng.Exec(ctx, name, engine.ExecSpec{}, "id", "-u", desired); err == nil {
		slog.Info("container account already exists", "user", desired)
		return desired, nil
	}

	if owner, taken := p.uidOwner(ctx, name, host.UID); taken {
		slog.Warn("host uid already bound inside the container, granting access to that account instead",
			"uid", host.UID, "existing", owner, "desired", desired)
		return owner, nil
	}

	slog.Info("creating container account", "user", desired, "uid", host.UID)
	if _, err := p.eng.Exec(ctx, name, engine.ExecSpec{}, "useradd", "-m", "-u", fmt.Sprint(host.UID), desired); err != nil {
		return "", fmt.Errorf("create user %s with uid %d in %s: %w", desired, host.UID, name, err)
	}
	return desired, nil
}

// uidOwner reports which existing container account, if any, owns the uid.
func (p *Provisioner) uidOwner(ctx context.Context, name config.ContainerName, uid int) (string, bool) {
	out, err := p.eng.Exec(ctx, name, engine.ExecSpec{}, "getent", "passwd", fmt.Sprint(uid))
	if err != nil {
		// getent exits nonzero for an unknown uid.
		return "", false
	}
	owner, _, ok := strings.Cut(strings.TrimSpace(out), ":")
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}

func (p *Provisioner) setPassword(ctx context.Context, name config.ContainerName, user string) error {
	pass := p.cfg.Password
	if pass == "" && p.prompt != nil {
		entered, err := p.prompt(user)
		if err != nil {
			return fmt.Errorf("read password for %s: %w", user, err)
		}
		pass = entered
	}
	if pass == "" {
		return passwordRequiredError(user)
	}
	script := fmt.Sprintf("printf '%%s' %s | chpasswd", engine.Quote(user+":"+pass))
	if _, err := p.eng.ExecScript(ctx, name, engine.ExecSpec{}, script); err != nil {
		return fmt.Errorf("set password for %s in %s: %w", user, name, err)
	}
	slog.Info("container account password set", "user", user)
	return nil
}

// authorizeKey appends the host public key to the account's authorized_keys
// unless the exact line is already there. A host without a key is a soft
// warning; password auth still works.
func (p *Provisioner) authorizeKey(ctx context.Context, name config.ContainerName, user string) error {
	keyPath, err := p.pubkeyPath()
	if err != nil {
		slog.Warn("cannot resolve a public key to propagate, password auth only", "error", err)
		return nil
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		slog.Warn("no public key to propagate, password auth only", "path", keyPath)
		return nil
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		slog.Warn("public key file is empty, password auth only", "path", keyPath)
		return nil
	}

	script := fmt.Sprintf(`set -e
home=$(getent passwd %[1]s | cut -d: -f6)
mkdir -p "$home/.ssh"
touch "$home/.ssh/authorized_keys"
grep -qxF %[2]s "$home/.ssh/authorized_keys" || echo %[2]s >>"$home/.ssh/authorized_keys"
chown -R %[1]s: "$home/.ssh"
chmod 700 "$home/.ssh"
chmod 600 "$home/.ssh/authorized_keys"`, engine.Quote(user), engine.Quote(key))
	if _, err := p.eng.ExecScript(ctx, name, engine.ExecSpec{}, script); err != nil {
		return fmt.Errorf("authorize public key for %s in %s: %w", user, name, err)
	}
	slog.Info("public key authorized", "user", user, "key", keyPath)
	return nil
}

func (p *Provisioner) pubkeyPath() (string, error) {
	if p.cfg.Pubkey != "" {
		return p.cfg.Pubkey, nil
	}
	host, err := p.invokingUser()
	if err != nil {
		return "", err
	}
	return filepath.Join(host.HomeDir, ".ssh", "id_rsa.pub"), nil
}

func (p *Provisioner) restartSSHD(ctx context.Context, name config.ContainerName) error {
	script := "service ssh restart 2>/dev/null || service sshd restart"
	if err := p.eng.ExecScriptStreaming(ctx, name, engine.ExecSpec{}, script); err != nil {
		return fmt.Errorf("restart sshd in %s: %w", name, err)
	}
	return nil
}

func sshPortNotMappedError(name config.ContainerName, port engine.NetworkPort) error {
	return issue.NewErrorContext().
		WithOperation("provisioning remote access").
		WithResource(string(name)).
		WithSuggestion(fmt.Sprintf("Recreate the container so creation publishes the mapping: `docker rm -f %s`, then rerun `watchdogctl bootstrap` to create it with `-p <host port>:%d`", name, port)).
		WithIssue(issue.SSHPortNotMappedId).
		Wrap(fmt.Errorf("container port %d is not published", port)).
		BuildError()
}

func passwordRequiredError(user string) error {
	return issue.NewErrorContext().
		WithOperation("setting the container account password").
		WithResource(user).
		WithSuggestion("Set WATCHDOG_REMOTE_PASSWORD, or run the bootstrap from a terminal to be prompted").
		WithIssue(issue.PasswordRequiredId).
		Wrap(errors.New("no password configured and no interactive prompt available")).
		BuildError()
}
