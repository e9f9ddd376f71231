// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ContainerEngineNotFoundId Id = iota + 1
	EngineUnreachableId
	ImagePullFailedId
	ContainerCreateFailedId
	AptInstallFailedId
	WheelCacheMissingId
	SSHPortNotMappedId
	CredentialsFileUnreadableId
	ConfigLoadFailedId
	PasswordRequiredId
	ConcurrentRunId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

The bootstrap needs the docker CLI on the device, but it is not in PATH.

## Things you can try:
- Install Docker on the device:
~~~
$ curl -fsSL https://get.docker.com | sh
~~~

- On Jetson images, Docker usually ships preinstalled; check the service:
~~~
$ systemctl status docker
~~~

- If the binary lives outside PATH, point the bootstrap at it:
~~~
$ export WATCHDOG_ENGINE_BINARY=/usr/local/bin/docker
~~~`,
	}

	engineUnreachableIssue = &Issue{
		id: EngineUnreachableId,
		mdMsg: `
# Container engine unreachable!

The docker CLI is installed but neither a plain invocation nor one prefixed
with ` + "`sudo -n`" + ` could talk to the daemon.

## Things you can try:
- Make sure the daemon is running:
~~~
$ sudo systemctl start docker
~~~

- Add your user to the docker group (log out and back in afterwards):
~~~
$ sudo usermod -aG docker $USER
~~~

- Or allow passwordless sudo for the bootstrap user, since ` + "`sudo -n`" + `
  fails instead of prompting for a password.`,
	}

	imagePullFailedIssue = &Issue{
		id: ImagePullFailedId,
		mdMsg: `
# Image pull failed!

The base image for the watchdog container could not be pulled.

## Common causes:
- The device is offline or behind a captive portal
- A typo in the configured image reference
- The registry is rate limiting anonymous pulls

## Things you can try:
- Check connectivity and retry the bootstrap
- Verify the image reference:
~~~
$ echo $WATCHDOG_CONTAINER_IMAGE
$ docker pull ubuntu:22.04
~~~

- Pre-load the image from a machine that is online:
~~~
$ docker save ubuntu:22.04 | ssh device docker load
~~~`,
	}

	containerCreateFailedIssue = &Issue{
		id: ContainerCreateFailedId,
		mdMsg: `
# Container creation failed!

` + "`docker create`" + ` rejected the container definition. The most common
cause on a reused device is a host port already bound by another service.

## Things you can try:
- See what is holding the ports:
~~~
$ sudo ss -tlnp | grep -e :8080 -e :2222
~~~

- Pick different host ports:
~~~
$ export WATCHDOG_APP_HOST_PORT=8081
$ export WATCHDOG_SSH_HOST_PORT=2223
~~~

- Remove a conflicting leftover container:
~~~
$ docker rm -f <name>
~~~`,
	}

	aptInstallFailedIssue = &Issue{
		id: AptInstallFailedId,
		mdMsg: `
# Package installation failed!

apt-get could not install the required system packages while the device is
online, so the bootstrap cannot guarantee a working toolchain.

## Things you can try:
- Refresh the package index manually and read the errors:
~~~
$ sudo apt-get update
~~~

- Check for held or broken packages:
~~~
$ sudo apt-get -f install
~~~

- If the mirror is unreachable but you are otherwise set up, skip apt:
~~~
$ export WATCHDOG_SKIP_APT=1
~~~`,
	}

	wheelCacheMissingIssue = &Issue{
		id: WheelCacheMissingId,
		mdMsg: `
# Offline wheel cache missing!

The bootstrap is running offline and pip was told to install from the local
wheel cache only, but the cache directory is missing or empty. Nothing was
downloaded and nothing will be: offline installs never touch the network.

## Things you can try:
- Seed the cache while the device (or any machine) is online:
~~~
$ watchdogctl deps seed
~~~

- Or copy a cache from another machine:
~~~
$ scp -r wheels/ device:/opt/watchdog/wheels
~~~

- Check where the bootstrap expects the cache:
~~~
$ echo $WATCHDOG_WHEEL_CACHE
~~~`,
	}

	sshPortNotMappedIssue = &Issue{
		id: SSHPortNotMappedId,
		mdMsg: `
# SSH port not mapped!

Remote access provisioning needs the container to expose its SSH port, but
the running container has no mapping for it. Port mappings are fixed at
creation time, so the container must be recreated.

## Things you can try:
- Remove the container and re-run the bootstrap; it will be recreated with
  the SSH mapping:
~~~
$ docker rm -f watchdog-ubuntu2204
$ watchdogctl bootstrap
~~~

- If you changed the SSH port, make sure it is set before the container is
  first created:
~~~
$ export WATCHDOG_SSH_HOST_PORT=2222
~~~`,
	}

	credentialsFileUnreadableIssue = &Issue{
		id: CredentialsFileUnreadableId,
		mdMsg: `
# Wi-Fi credentials file unreadable!

A credentials file was configured but could not be read or parsed.

## Expected format (KEY=value, '#' starts a comment):
~~~
# /etc/watchdogctl/wifi.conf
WIFI_SSID=office-5g
WIFI_PASSWORD=hunter2
WIFI_IFACE=wlan0
~~~

## Things you can try:
- Check the file exists and is readable by the bootstrap user
- Quote values that contain spaces
- Or set the values directly in the environment:
~~~
$ export WATCHDOG_WIFI_SSID=office-5g
$ export WATCHDOG_WIFI_PASSWORD=...
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the watchdogctl configuration file.

## Configuration file locations:
- Linux: ~/.config/watchdogctl/config.cue
- macOS: ~/Library/Application Support/watchdogctl/config.cue
- Windows: %APPDATA%\watchdogctl\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ watchdogctl config init
~~~

- Check the configuration syntax
- Remove the config file to use defaults:
~~~
$ rm ~/.config/watchdogctl/config.cue
~~~

## Example configuration:
~~~cue
container: {
  name:  "watchdog-ubuntu2204"
  image: "ubuntu:22.04"
}

wifi: {
  ssid: "office-5g"
}
~~~`,
	}

	passwordRequiredIssue = &Issue{
		id: PasswordRequiredId,
		mdMsg: `
# Remote access password required!

No password was configured for the remote account and the bootstrap is not
attached to a terminal, so it cannot prompt for one.

## Things you can try:
- Set the password in the environment:
~~~
$ export WATCHDOG_REMOTE_PASSWORD=...
~~~

- Or run the bootstrap from an interactive terminal and type it at the
  prompt

- Or skip remote access entirely on production devices:
~~~
$ watchdogctl bootstrap --production
~~~`,
	}

	concurrentRunIssue = &Issue{
		id: ConcurrentRunId,
		mdMsg: `
# Another bootstrap is already running!

The bootstrap reconciles host and container state step by step and must not
run concurrently with itself, so it refuses to start while a lock from a
live process exists.

## Things you can try:
- Wait for the other run to finish
- A crashed run releases its lock the moment the process exits, so a stale
  lock always means a live holder; find it with:
~~~
$ fuser -v "${XDG_RUNTIME_DIR:-/tmp}/watchdogctl.lock"
~~~`,
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id():   containerEngineNotFoundIssue,
		engineUnreachableIssue.Id():         engineUnreachableIssue,
		imagePullFailedIssue.Id():           imagePullFailedIssue,
		containerCreateFailedIssue.Id():     containerCreateFailedIssue,
		aptInstallFailedIssue.Id():          aptInstallFailedIssue,
		wheelCacheMissingIssue.Id():         wheelCacheMissingIssue,
		sshPortNotMappedIssue.Id():          sshPortNotMappedIssue,
		credentialsFileUnreadableIssue.Id(): credentialsFileUnreadableIssue,
		configLoadFailedIssue.Id():          configLoadFailedIssue,
		passwordRequiredIssue.Id():          passwordRequiredIssue,
		concurrentRunIssue.Id():             concurrentRunIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
