// Command repack is the CLI entrypoint (spec §6): build/document/configure/
// clean over a schema file, with a testable run(args, stdin, stdout,
// stderr) int core grounded on ha1tch-tgpiler/cmd/tgpiler/main.go's own
// entrypoint shape, since the teacher repo ships no cmd/ of its own.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golangee/repack/internal/driver"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("repack", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		verbose  = fs.Bool("verbose", false, "also print each diagnostic's underlying cause")
		showHelp = fs.Bool("h", false, "show help")
		helpL    = fs.Bool("help", false, "show help")
		showVer  = fs.Bool("v", false, "show version")
		versionL = fs.Bool("version", false, "show version")
	)

	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *helpL {
		*showHelp = true
	}
	if *versionL {
		*showVer = true
	}

	if *showHelp {
		printUsage(stdout)
		return 0
	}
	if *showVer {
		fmt.Fprintf(stdout, "repack version %s\n", version)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stdout)
		return 0
	}

	cmd, schemaPath, err := parseCommand(rest)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	env := &driver.OSEnvironment{}
	diags := driver.New(env).Run(cmd, schemaPath)

	for _, e := range diags.Errors() {
		fmt.Fprintln(stderr, e.Error())
		if *verbose && e.Cause != nil {
			fmt.Fprintf(stderr, "  caused by: %v\n", e.Cause)
		}
	}
	if diags.HasErrors() {
		return 1
	}
	return 0
}

// parseCommand maps the positional args following flag parsing onto a
// driver.Command, per the four CLI forms in spec §6:
//
//	build <schema.repack>
//	document <schema.repack>
//	configure <env> <schema.repack>
//	clean <schema.repack>
func parseCommand(args []string) (driver.Command, string, error) {
	switch args[0] {
	case "build", "document", "clean":
		if len(args) != 2 {
			return driver.Command{}, "", fmt.Errorf("%s requires exactly one schema file argument", args[0])
		}
		return driver.Command{Kind: args[0]}, args[1], nil
	case "configure":
		if len(args) != 3 {
			return driver.Command{}, "", fmt.Errorf("configure requires an environment and a schema file argument")
		}
		return driver.Command{Kind: "configure", Env: args[1]}, args[2], nil
	default:
		return driver.Command{}, "", fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `repack - schema-driven, multi-target code generator

Usage:
  repack build <schema.repack>
  repack document <schema.repack>
  repack configure <env> <schema.repack>
  repack clean <schema.repack>

Options:
  --verbose        also print each diagnostic's underlying cause
  -h, --help       show this help
  -v, --version    show version

Exit codes:
  0  success
  1  diagnostics emitted
  2  CLI usage error
`)
}
