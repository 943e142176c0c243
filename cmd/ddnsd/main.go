package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/judwhite/go-svc"
	"github.com/jxo-me/ddnsd/cmd/ddnsd/cliutil"
	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	"github.com/jxo-me/ddnsd/sdk/service"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	Version   = "DEV"
	BuildTime = "unknown"
	BuildType = ""
)

const (
	// exitFailed is returned by check when a cycle failed.
	exitFailed = 1
	// exitConfig is returned by check when targets were excluded.
	exitConfig = 2
)

func main() {
	bInfo := cliutil.GetBuildInfo(BuildType, Version)

	app := &cli.App{}
	app.Name = "ddnsd"
	app.Usage = "keep DNS records in sync with this host's public address"
	app.UsageText = "ddnsd [global options] [command] [command options]"
	app.Version = fmt.Sprintf("%s (built %s%s)", Version, BuildTime, bInfo.GetBuildTypeMsg())
	app.Description = `ddnsd discovers the public IPv4 and IPv6 addresses of this host and
	updates DNS records at Cloudflare, GoDaddy or Porkbun on a cron schedule per target.

	The configuration file is watched; changes are applied without a restart.`
	app.Flags = flags()
	app.Action = cliutil.Action(runAction(bInfo))
	app.Commands = commands(bInfo)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"C"},
			Usage:   "configuration file, default ./config.yaml, ~/.ddnsd/config.yaml or /etc/ddnsd/config.yaml",
			EnvVars: []string{config.ConfigFilePathENV},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"O"},
			Usage:   "print the resolved configuration as `FORMAT` (yaml or json) and exit",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override the configured log level: trace, debug, info, warn or error",
		},
	}
}

func commands(bInfo *cliutil.BuildInfo) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "version",
			Usage: "Print the version",
			Action: func(c *cli.Context) error {
				_, err := fmt.Fprintln(c.App.Writer, bInfo.String())
				return err
			},
		},
		{
			Name:  "check",
			Usage: "Reconcile every target once and exit",
			Description: `Runs one reconciliation cycle per target, concurrently, and prints the outcomes.
Exits with 1 when a cycle failed and with 2 when a target was excluded by a configuration error.`,
			Action: cliutil.Action(checkAction),
		},
	}
}

// configPath returns the --config flag or the first config file found.
func configPath(c *cli.Context) (string, error) {
	if p := c.String("config"); p != "" {
		return p, nil
	}
	return config.FindConfigPath()
}

func runAction(bInfo *cliutil.BuildInfo) cli.ActionFunc {
	return func(c *cli.Context) error {
		path, err := configPath(c)
		if err != nil {
			return err
		}
		if format := c.String("output"); format != "" {
			cfg, err := config.ReadConfig(path, nil)
			if err != nil {
				return err
			}
			return cfg.Write(c.App.Writer, format)
		}

		p := &program{configPath: path, logLevel: c.String("log-level"), bInfo: bInfo}
		return svc.Run(p)
	}
}

func checkAction(c *cli.Context) error {
	path, err := configPath(c)
	if err != nil {
		return err
	}
	cfg, err := config.ReadConfig(path, nil)
	if err != nil {
		return err
	}
	log := logFromConfig(cfg.Log, c.String("log-level"), logOutput(cfg.Log))
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ddns, errs := service.NewDDNS(&cfg, log)
	reports := ddns.RunOnce(ctx)
	if err := ddns.Stop(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	failed := false
	for _, r := range reports {
		for _, o := range r.Outcomes {
			fmt.Fprintln(c.App.Writer, o.String())
			failed = failed || o.IsFailed()
		}
	}
	for _, err := range errs {
		fmt.Fprintf(c.App.ErrWriter, "excluded: %v\n", err)
	}
	switch {
	case failed:
		return cli.Exit("", exitFailed)
	case len(errs) > 0:
		return cli.Exit("", exitConfig)
	}
	return nil
}
