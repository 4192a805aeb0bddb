package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/katha/internal/config"
	"github.com/hpungsan/katha/internal/db"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "publish": true, "write": true, "draft": true,
	"feed": true, "view": true, "writer": true, "unlock": true, "sweep": true,
	"family": true, "child": true, "profile": true, "prompts": true,
	"token": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	// Global flags such as --as precede the subcommand.
	for _, a := range os.Args[2:] {
		if cliCommands[a] {
			return true
		}
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
   _  __     _   _
  | |/ /__ _| |_| |__   __ _
  | ' // _' | __| '_ \ / _' |
  | . \ (_| | |_| | | | (_| |
  |_|\_\__,_|\__|_| |_|\__,_|

  Family stories, sealed until it's time

  Usage: katha <command> [options]
         katha --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Help and version need no database
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".katha")
	if dir := os.Getenv("KATHA_HOME"); dir != "" {
		baseDir = dir
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg, os.Stderr)
	if err != nil {
		fatal("failed to configure logging: %v", err)
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		fatal("failed to create %s: %v", baseDir, err)
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	rt, err := newRuntime(context.Background(), baseDir, database, cfg, logger)
	if err != nil {
		fatal("%v", err)
	}

	if isCLIMode() {
		app := newCLIApp(rt)
		if err := app.Run(os.Args); err != nil {
			database.Close()
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		database.Close()
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'katha --help' for usage.\n")
		os.Exit(1)
	}

	err = mcp.Run(mcp.Deps{
		DB:        database,
		Cfg:       cfg,
		Publisher: rt.publisher(),
		Prompts:   rt.prompts,
		Logger:    logger,
	}, Version)
	if err != nil {
		database.Close()
		fatal("%v", err)
	}
}
