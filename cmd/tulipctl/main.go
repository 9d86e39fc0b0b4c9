// Command tulipctl runs table operations against a Tulip instance:
//
//	tulipctl upload-csv -table T -file rows.csv [-random-id] [-warn] [-concurrency N] [-charset cs]
//	tulipctl export-csv -table T [-out file.csv] [-filter field:fn:arg] [-sort-by col] [-asc] [-limit N]
//	tulipctl increment  -table T -column C [-by N] [-filter field:fn:arg]
//	tulipctl get-table  -table T
//	tulipctl get-record -table T -id R [-cached]
//	tulipctl link       -link L -left A -right B [-unlink]
//	tulipctl report     -machine M attr=value...
//
// Connection settings come from TULIP_* variables (see internal/config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tulipapi/internal/config"
	"github.com/JonMunkholm/tulipapi/internal/logging"
	"github.com/JonMunkholm/tulipapi/internal/tulip"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, app *app, args []string) error
}

var commands = []command{
	{"upload-csv", "create one record per CSV row", runUploadCSV},
	{"export-csv", "write table records as CSV", runExportCSV},
	{"increment", "increment a column of every matching record", runIncrement},
	{"get-table", "print table metadata and schema", runGetTable},
	{"get-record", "print one record", runGetRecord},
	{"link", "link or unlink two records", runLink},
	{"report", "send machine attribute values", runReport},
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	// newClient is swapped in tests.
	newClient func(cfg tulip.Config) (*tulip.Client, error)
}

func (a *app) client(auth string) (*tulip.Client, error) {
	cc := a.cfg.API.ClientConfig(auth)
	cc.Logger = a.logger
	return a.newClient(cc)
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(2)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:       cfg,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger,
		newClient: tulip.NewClient,
	}
	os.Exit(a.run(ctx, os.Args[1:]))
}

// run dispatches to a command and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		a.usage()
		return 2
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(ctx, a, args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 2
			}
			if errors.Is(err, errUsage) {
				fmt.Fprintln(a.stderr, err)
				return 2
			}
			a.logger.Error("command failed", "command", c.name, "error", err)
			if msg := tulip.FormatUserError(err); tulip.IsUserFacing(err) {
				fmt.Fprintln(a.stderr, msg)
			} else {
				fmt.Fprintln(a.stderr, "error:", err)
			}
			return 1
		}
		return 0
	}

	fmt.Fprintf(a.stderr, "unknown command %q\n\n", args[0])
	a.usage()
	return 2
}

func (a *app) usage() {
	fmt.Fprintln(a.stderr, "usage: tulipctl <command> [flags]")
	fmt.Fprintln(a.stderr)
	for _, c := range commands {
		fmt.Fprintf(a.stderr, "  %-11s %s\n", c.name, c.usage)
	}
}
