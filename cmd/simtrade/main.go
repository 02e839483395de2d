// Command simtrade syncs, processes and exports market data bars.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bobmcallan/simtrade/internal/app"
	"github.com/bobmcallan/simtrade/internal/common"
)

const usage = `usage: simtrade [-config path] [-quiet] <command> [flags]

commands:
  sync      incrementally sync symbols up to a target date
  gaps      detect (and optionally backfill) missing trading days
  export    write stored bars to parquet
  status    show per-symbol sync status
  register  add symbols to the active stock list
  version   print version information
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()

	global := flag.NewFlagSet("simtrade", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := global.String("config", "", "path to simtrade.toml")
	quiet := global.Bool("quiet", false, "suppress the startup banner")
	if err := global.Parse(args); err != nil {
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	command, cmdArgs := rest[0], rest[1:]

	if command == "version" {
		fmt.Println(common.GetFullVersion())
		return 0
	}

	handler, ok := commands[command]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		global.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return 1
	}
	defer a.Close()

	if !*quiet {
		common.PrintBanner(os.Stderr, a.Config, a.Logger, command)
	}

	code, err := handler(ctx, a, cmdArgs)
	if err != nil {
		a.Logger.Error().Err(err).Str("command", command).Msg("Command failed")
		if code == 0 {
			code = 1
		}
	}
	return code
}
