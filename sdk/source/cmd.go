package source

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/consts"
	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
)

// Cmd runs a shell command and takes the first address of the requested
// family found in its output.
type Cmd struct {
	command string
}

func NewCmd(id string, cfg config.SourceConfig) (*Cmd, error) {
	c := &Cmd{command: cfg.Param("command")}
	if c.command == "" {
		return nil, config.NewConfigError(config.InvalidTarget, id, "cmd source needs a command")
	}
	return c, nil
}

func (c *Cmd) String() string {
	return KindCmd
}

func (c *Cmd) Discover(ctx context.Context, family consts.Family) (ddns.Address, error) {
	name, args := shell(c.command)
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = errors.Wrap(err, msg)
		}
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.UnreachableEndpoint, c.String(),
			errors.Wrapf(err, "run %q", c.command))
	}
	addr, ok := findLiteral(string(out), family)
	if !ok {
		return ddns.Address{}, ddns.NewDiscoveryError(ddns.MalformedResponse, c.String(),
			errors.Errorf("no %s address in the output of %q", family, c.command))
	}
	return ddns.NewAddress(addr, time.Now()), nil
}

// shell picks powershell on Windows, otherwise bash when installed and sh.
func shell(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "powershell", []string{"-NoProfile", "-Command", command}
	}
	if _, err := exec.LookPath("bash"); err == nil {
		return "bash", []string{"-c", command}
	}
	return "sh", []string{"-c", command}
}
