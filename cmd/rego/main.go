// cmd/rego/main.go
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/opa-rego/rego-go/internal/interp"
	"github.com/opa-rego/rego-go/internal/logging"
)

const VERSION = "0.1.0"

// Build variables - can be set during build with ldflags
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

// Command aliases mapping
var commandAliases = map[string]string{
	"q": "query",
	"e": "eval",
	"b": "build",
}

var isTTY = isatty.IsTerminal(os.Stdout.Fd())

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		showUsage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		showVersion()
		return
	}

	switch cmd {
	case "eval", "query":
		runEval(args[1:])
	case "build":
		runBuild(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

// cliOptions collects the flag values §6.4 names: -q query, -d data/module
// files (repeatable), -i input file, -l log level, -w well-formedness
// checks, -a build-cache directory.
type cliOptions struct {
	query      string
	dataFiles  []string
	inputFile  string
	logLevel   string
	wfChecks   bool
	cacheDir   string
	positional []string
}

func parseFlags(args []string) (*cliOptions, error) {
	opt := &cliOptions{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-q":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-q requires a query expression")
			}
			opt.query = args[i]
		case "-d":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-d requires a file path")
			}
			opt.dataFiles = append(opt.dataFiles, args[i])
		case "-i":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-i requires a file path")
			}
			opt.inputFile = args[i]
		case "-l":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-l requires a level")
			}
			opt.logLevel = args[i]
		case "-w":
			opt.wfChecks = true
		case "-a":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-a requires a cache directory")
			}
			opt.cacheDir = args[i]
		default:
			if strings.HasPrefix(args[i], "-") {
				return nil, fmt.Errorf("unrecognized flag %q", args[i])
			}
			opt.positional = append(opt.positional, args[i])
		}
	}
	return opt, nil
}

func buildInterpreter(opt *cliOptions) (*interp.Interpreter, error) {
	var ins []interp.Option
	if opt.wfChecks {
		ins = append(ins, interp.WithWFChecks(true))
	}
	if opt.cacheDir != "" {
		ins = append(ins, interp.WithBuildCache(opt.cacheDir))
	}
	if opt.logLevel != "" {
		lvl, ok := logging.ParseLevel(opt.logLevel)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", opt.logLevel)
		}
		ins = append(ins, interp.WithLogLevel(lvl))
	}

	in := interp.New(ins...)
	for _, f := range opt.dataFiles {
		if strings.HasSuffix(f, ".json") {
			if err := in.AddDataJSONFile(f); err != nil {
				return nil, err
			}
			continue
		}
		if err := in.AddModuleFile(f); err != nil {
			return nil, err
		}
	}
	if opt.inputFile != "" {
		if err := in.SetInputJSON(readFileOrExit(opt.inputFile)); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func runEval(args []string) {
	opt, err := parseFlags(args)
	if err != nil {
		fatal(err)
	}
	if opt.query == "" {
		fatal(fmt.Errorf("-q is required"))
	}

	in, err := buildInterpreter(opt)
	if err != nil {
		fatal(err)
	}

	start := time.Now()
	out, err := in.Query(opt.query)
	elapsed := time.Since(start)
	if err != nil {
		colorFprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out)
	if isTTY {
		fmt.Fprintf(os.Stderr, "evaluated in %s\n", humanize.RelTime(start, start.Add(elapsed), "", ""))
	}
}

func runBuild(args []string) {
	opt, err := parseFlags(args)
	if err != nil {
		fatal(err)
	}
	in, err := buildInterpreter(opt)
	if err != nil {
		fatal(err)
	}
	if opt.query != "" {
		if err := in.SetQuery(opt.query); err != nil {
			fatal(err)
		}
	}

	start := time.Now()
	if _, err := in.Build(); err != nil {
		fatal(err)
	}
	elapsed := time.Since(start)

	outPath := "bundle"
	if len(opt.positional) > 0 {
		outPath = opt.positional[len(opt.positional)-1]
	}
	if err := in.SaveBundle(outPath); err != nil {
		fatal(err)
	}

	size := dirSize(outPath)
	fmt.Fprintf(os.Stderr, "built %s (%s) in %s\n", outPath, humanize.Bytes(size),
		humanize.RelTime(start, start.Add(elapsed), "", ""))
}

func dirSize(path string) uint64 {
	var total int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if total == 0 {
		if info, err := os.Stat(path); err == nil {
			total = info.Size()
		}
	}
	return uint64(total)
}

func readFileOrExit(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}
	return string(b)
}

func fatal(err error) {
	colorFprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func colorFprintf(w *os.File, format string, args ...interface{}) {
	if isTTY {
		fmt.Fprintf(w, "\x1b[31m"+format+"\x1b[0m", args...)
		return
	}
	fmt.Fprintf(w, format, args...)
}

func showVersion() {
	fmt.Printf("rego %s\n", VERSION)
	fmt.Printf("build date: %s\n", BuildDate)
	if gitCmd, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output(); err == nil {
		GitCommit = strings.TrimSpace(string(gitCmd))
	}
	if GitCommit != "unknown" {
		fmt.Printf("commit:     %s\n", GitCommit)
	}
}

func showUsage() {
	fmt.Println("rego - a policy compiler and bundle VM")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rego eval -q <query> [-d FILE]... [-i INPUT] [-l LEVEL] [-w]       (alias: query, q, e)")
	fmt.Println("  rego build -q <query> [-d FILE]... [-a CACHEDIR] [out]              (alias: b)")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -q QUERY     ad-hoc query expression to evaluate")
	fmt.Println("  -d FILE      a module (.rego) or data (.json) file, repeatable")
	fmt.Println("  -i FILE      JSON input document")
	fmt.Println("  -l LEVEL     log level: off|error|warn|info|debug|trace")
	fmt.Println("  -w           enable well-formedness checks before compiling")
	fmt.Println("  -a DIR       sqlite bundle build cache directory")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  rego eval -q 'data.example.allow' -d policy.rego -i input.json")
	fmt.Println("  rego build -q 'data.example.allow' -d policy.rego ./out")
}
