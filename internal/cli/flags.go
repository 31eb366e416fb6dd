package cli

import (
	"flag"
	"fmt"
	"io"
)

// Reconciliation modes accepted by -mode.
const (
	ModeBank   = "bank"
	ModeVendor = "vendor"
)

// ReconcileFlags are the flags of the batch reconcile command.
type ReconcileFlags struct {
	ConfigPath string
	Input      string // "-" reads stdin
	Output     string // empty writes stdout
	Mode       string
	Persist    bool
	Verbose    bool
	Quiet      bool
}

// ParseReconcileFlags parses reconcile flags from args.
func ParseReconcileFlags(args []string, stderr io.Writer) (*ReconcileFlags, error) {
	flags := &ReconcileFlags{}
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path (default: config.yaml, then environment)")
	fs.StringVar(&flags.Input, "input", "-", "Request JSON file, - for stdin")
	fs.StringVar(&flags.Output, "output", "", "Write the response JSON to this file instead of stdout")
	fs.StringVar(&flags.Mode, "mode", ModeBank, "Reconciliation mode: bank or vendor")
	fs.BoolVar(&flags.Persist, "persist", false, "Store the run and its settlements in the database")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&flags.Quiet, "quiet", false, "Do not print the summary")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if flags.Mode != ModeBank && flags.Mode != ModeVendor {
		return nil, fmt.Errorf("unknown mode %q: must be %s or %s", flags.Mode, ModeBank, ModeVendor)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return flags, nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Port       int // 0 keeps the configured port
	Verbose    bool
}

// ParseServeFlags parses serve flags from args.
func ParseServeFlags(args []string, stderr io.Writer) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path (default: config.yaml, then environment)")
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides config)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
