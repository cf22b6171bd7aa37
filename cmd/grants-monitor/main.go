package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/david/eu-grants-monitor/internal/config"
)

const usage = `Usage: grants-monitor [-config path] [-v] <command> [flags]

Commands:
  setup                          write an example config.yaml
  run [-continuous]              run one monitoring cycle, or keep running
  list [-filter kw] [-complexity level] [-amount min-max]
  show <grant-id> [-docs]        show one grant, optionally analyzing its call document
  assist <grant-id> [-save file] application guidance
  generate <grant-id> [-out dir] prefill the application documents
  serve [-port 8081] [-schedule] start the HTTP API
  sessions [-limit 10]           recent monitoring cycles
`

func main() {
	global := flag.NewFlagSet("grants-monitor", flag.ExitOnError)
	configPath := global.String("config", "", "path to config file")
	verbose := global.Bool("v", false, "enable debug logging")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	if cmd == "setup" {
		if err := runSetup(*configPath); err != nil {
			fatal(err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	switch cmd {
	case "run":
		err = runMonitor(ctx, cfg, rest)
	case "list":
		err = runList(ctx, cfg, rest)
	case "show":
		err = runShow(ctx, cfg, rest)
	case "assist":
		err = runAssist(ctx, cfg, rest)
	case "generate":
		err = runGenerate(ctx, cfg, rest)
	case "serve":
		err = runServe(ctx, cfg, rest)
	case "sessions":
		err = runSessions(ctx, cfg, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		global.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
