// Command ddnscf keeps a Cloudflare A/AAAA record pointed at the public address of this host.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudflare/cloudflare-go"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/auditlog"
)

func main() {
	ctl := newApp()
	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(ctl.ErrWriter, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	ctl := cli.NewApp()
	ctl.Name = "ddnscf"
	ctl.Usage = "dynamic DNS for Cloudflare"
	ctl.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "path to the YAML configuration file", EnvVar: "DDNS_CONFIG"},
		cli.BoolFlag{Name: "debug, d", Usage: "enable debug logging"},
	}
	ctl.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "sync on startup and then on every interval until interrupted",
			Action: runDaemon,
		},
		{
			Name:   "once",
			Usage:  "push the current addresses once and exit",
			Action: runOnce,
		},
		setupCommand(),
		logCommand(),
	}
	ctl.Action = runDaemon
	return ctl
}

// prepare loads and validates the configuration and builds the logger and syncer.
func prepare(c *cli.Context) (Config, *zap.Logger, *ddns.Syncer, error) {
	cfg, err := LoadConfig(c.GlobalString("config"), nil)
	if err != nil {
		return cfg, nil, nil, cli.NewExitError(err, 1)
	}
	logger, err := newLogger(c.GlobalBool("debug"), cfg.LogLevel)
	if err != nil {
		return cfg, nil, nil, cli.NewExitError(err, 1)
	}
	if err := cfg.Validate(); err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			logger.Error("missing required configuration", zap.Strings("keys", ce.Missing))
		}
		return cfg, logger, nil, cli.NewExitError(err, 1)
	}
	s, err := newSyncer(cfg, logger, auditlog.New(cfg.AuditLog, logger.Named("auditlog")))
	if err != nil {
		return cfg, logger, nil, cli.NewExitError(err, 1)
	}
	return cfg, logger, s, nil
}

func newSyncer(cfg Config, logger *zap.Logger, audit ddns.Auditor, cfOpts ...cloudflare.Option) (*ddns.Syncer, error) {
	token, err := cfg.Token()
	if err != nil {
		return nil, err
	}
	src, err := newSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ddns.ErrConfiguration, err)
	}
	return ddns.New(cfg.RecordName,
		ddns.UsingCloudflare(token, cfg.ZoneID, cfOpts...),
		ddns.UsingSource(src),
		ddns.WithLogger(logger),
		ddns.WithAuditLog(audit),
		ddns.WithIPv6(cfg.IPv6),
		ddns.WithTTL(cfg.TTL),
		ddns.WithProxied(cfg.Proxied),
		ddns.WithRetries(cfg.Retries, cfg.BackoffUnit),
		ddns.WithTimeouts(cfg.ResolveTimeout, cfg.ProviderTimeout),
		ddns.WithComment(cfg.Comment),
	)
}

func newSource(cfg Config) (ddns.Source, error) {
	ipv6URL := cfg.IPv6URL
	if !cfg.IPv6 {
		ipv6URL = ""
	}
	switch cfg.Source {
	case SourceWeb, "":
		return ddns.WebSource(cfg.IPv4URL, ipv6URL)
	case SourceDNS:
		v6 := ddns.DefaultIPv6Server
		if !cfg.IPv6 {
			v6 = ""
		}
		return ddns.DNSSource(ddns.DefaultIPv4Server, v6), nil
	case SourceInterface:
		return ddns.InterfaceSource(cfg.Interface), nil
	case SourceStatic:
		return ddns.StaticSource(cfg.StaticIPv4, cfg.StaticIPv6)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func runDaemon(c *cli.Context) error {
	cfg, logger, s, err := prepare(c)
	if logger != nil {
		defer func() { _ = logger.Sync() }()
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := newHealthService(cfg.Listen, logger)
	go health.Start()
	defer health.ShutDown()

	if cfg.Metrics.Enabled {
		metrics := newMetricsService(cfg.Metrics.Address, logger)
		go metrics.Start()
		defer metrics.ShutDown()
	}

	logger.Info("starting sync",
		zap.String("record", cfg.RecordName),
		zap.Bool("ipv6", cfg.IPv6),
		zap.String("source", cfg.Source),
		zap.Duration("interval", cfg.Interval))
	s.RunDaemon(ctx, cfg.Interval)
	logger.Info("shutting down")
	return nil
}

func runOnce(c *cli.Context) error {
	_, logger, s, err := prepare(c)
	if logger != nil {
		defer func() { _ = logger.Sync() }()
	}
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := s.RunStartup(ctx); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
