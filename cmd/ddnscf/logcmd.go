package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/Travis-Britz/ddnsync/auditlog"
)

func logCommand() cli.Command {
	return cli.Command{
		Name:  "log",
		Usage: "print the most recent audit log entries",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "n", Value: 20, Usage: "number of entries to show (0 for all)"},
			cli.StringFlag{Name: "file, f", Usage: "audit log document (default: audit_log from config)"},
		},
		Action: printLog,
	}
}

func printLog(c *cli.Context) error {
	path := c.String("file")
	if path == "" {
		cfg, err := LoadConfig(c.GlobalString("config"), nil)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		path = cfg.AuditLog
	}
	doc, err := auditlog.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(c.App.Writer, "no audit log at %s\n", path)
		return nil
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	renderEntries(c.App.Writer, doc.Tail(c.Int("n")))
	return nil
}

func renderEntries(w io.Writer, entries []auditlog.Entry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Level", "Type", "IP", "Attempt", "Message", "Error"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		attempt := ""
		if e.Attempt > 0 {
			attempt = strconv.Itoa(e.Attempt)
		}
		table.Append([]string{e.Timestamp, string(e.Level), e.Type, e.NewIP, attempt, e.Message, e.Error})
	}
	table.Render()
}
