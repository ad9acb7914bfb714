package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func defaultTokenFile() string {
	return filepath.Join(os.Getenv("HOME"), ".cloudflare")
}

func setupCommand() cli.Command {
	return cli.Command{
		Name:  "setup",
		Usage: "prompt for a Cloudflare API token, verify it and store it in the token file",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "token-file, k", Usage: "path of the token file to create (default: token_file from config or ~/.cloudflare)"},
		},
		Action: runSetup,
	}
}

func runSetup(c *cli.Context) error {
	cfg, err := LoadConfig(c.GlobalString("config"), nil)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	logger, err := newLogger(c.GlobalBool("debug"), cfg.LogLevel)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = logger.Sync() }()

	path := c.String("token-file")
	if path == "" {
		path = cfg.TokenFile
	}
	if path == "" {
		path = defaultTokenFile()
	}

	fmt.Fprintln(c.App.Writer, "Enter Cloudflare API token:")
	bytekey, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("error reading from stdin: %w", err), 1)
	}
	key := strings.TrimSpace(string(bytekey))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("verifying token")
	if err := verifyToken(ctx, key); err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Info("token verified successfully")

	if err := writeKey(path, key); err != nil {
		return cli.NewExitError(err, 1)
	}
	logger.Info("token written", zap.String("path", path))
	return nil
}

func verifyToken(ctx context.Context, key string, opts ...cloudflare.Option) error {
	api, err := cloudflare.NewWithAPIToken(key, opts...)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	return nil
}

// writeKey creates the token file with owner-only permissions.
// An existing file is never overwritten.
func writeKey(path, key string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("unable to create \"%s\": %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	if _, err := fmt.Fprintln(f, key); err != nil {
		f.Close()
		return fmt.Errorf("unable to write \"%s\": %w", path, err)
	}
	return f.Close()
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	key = strings.TrimSpace(string(keyb))
	if key == "" {
		return "", fmt.Errorf("key file \"%s\" is empty", path)
	}
	return key, nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
