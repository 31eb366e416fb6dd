package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/ledgermatch/internal/cli"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	subArgs := os.Args[2:]

	// Route to subcommand
	var err error
	switch subcommand {
	case "serve":
		err = handleServe(subArgs)
	case "reconcile":
		err = handleReconcile(subArgs)
	case "help", "-h", "-help", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleServe(args []string) error {
	flags, err := cli.ParseServeFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return cli.RunServe(cfg, flags)
}

func handleReconcile(args []string) error {
	flags, err := cli.ParseReconcileFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.RunReconcile(ctx, cfg, flags, os.Stdin, os.Stdout, os.Stderr)
}

func printUsage() {
	fmt.Println("ledgermatch - bank and vendor register reconciliation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ledgermatch <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve       Run the HTTP API")
	fmt.Println("  reconcile   Reconcile one JSON request file and print the result")
	fmt.Println()
	fmt.Println("Run 'ledgermatch <command> -h' for command options.")
}
