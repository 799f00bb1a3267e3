package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ytakahashi/taskflow/internal/accounts"
	"github.com/ytakahashi/taskflow/internal/config"
	"github.com/ytakahashi/taskflow/internal/logger"
	"github.com/ytakahashi/taskflow/internal/models"
	"github.com/ytakahashi/taskflow/internal/reminder"
	"github.com/ytakahashi/taskflow/internal/services"
)

var (
	storeBackend string
	storePath    string
	verbose      bool
)

func main() {
	cfg := config.Load()

	flag.StringVar(&storeBackend, "store", cfg.Store.Backend, "Store backend: memory, sqlite, firestore, redis or postgres")
	flag.StringVar(&storePath, "store-path", cfg.Store.Path, "Path to the sqlite database")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Usage = usage
	flag.Parse()

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger.InitWriter(os.Stderr, level, cfg.LogJSON)

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg.Store.Backend = storeBackend
	cfg.Store.Path = storePath

	ctx := context.Background()
	kv, err := services.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	client := reminder.NewClient(cfg.NotifyURL, nil)
	dir := accounts.NewDirectory(kv, accounts.NewPasswordHasher(cfg.BcryptCost))
	a := &app{
		kv:       kv,
		accounts: accounts.NewManager(kv, dir, client),
		notify:   client,
		out:      os.Stdout,
		loc:      cfg.Location,
	}

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", models.UserMessage(err))
		logger.Debug("command failed", "error", err)
		kv.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: taskflow [flags] <command> [args]

Accounts:
  signup -name NAME -email EMAIL -password PASSWORD
  login -email EMAIL -password PASSWORD [-remember=false]
  logout
  whoami

Tasks:
  add [-priority low|medium|high] [-start TIME] [-end TIME] TEXT...
  list [-filter all|pending|completed]
  toggle ID
  edit ID [-text TEXT] [-priority P] [-start TIME] [-end TIME]
  delete ID
  clear-completed
  clear-all -yes
  stats

Reminders:
  reminders on|off|status
  reminder-sent ID
  ping

Preferences:
  theme [dark|light]

TIME is RFC 3339 or YYYY-MM-DDTHH:MM in TIMEZONE.

Flags:
`)
	flag.PrintDefaults()
}
