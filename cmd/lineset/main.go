package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/lineset"
	"github.com/aluiziolira/go-harvest-apps/logging"
	flag "github.com/spf13/pflag"
)

const usage = `usage: lineset <command> [flags] <files>

commands:
  unique [--sorted] <src> [dst]   coalesce duplicate lines, writing back to src when dst is omitted
  intersect <a> <b> [dst]         lines present in both files, sorted; stdout when dst is omitted
  count <file>...                 non-blank lines per file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	os.Exit(run(os.Args[1], os.Args[2:], os.Stdout))
}

func run(command string, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	verbose := fs.BoolP("verbose", "v", false, "Enable verbose logging")
	sorted := fs.Bool("sorted", false, "Sort output lines (unique only)")
	logPath := fs.String("log-file", config.DefaultLogFile, "Append JSON logs to this file (empty disables)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logFile, err := logging.Setup(*verbose, *logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logFile.Close()
	rest := fs.Args()

	switch command {
	case "unique":
		err = unique(rest, *sorted)
	case "intersect":
		err = intersect(rest, stdout)
	case "count":
		err = count(rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}
	if err != nil {
		slog.Error(command+" failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func unique(args []string, sorted bool) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("unique takes <src> [dst]")
	}
	src, dst := args[0], args[0]
	if len(args) == 2 {
		dst = args[1]
	}
	stats, err := lineset.DedupeFile(src, dst, sorted)
	if err != nil {
		return err
	}
	slog.Info("unique lines written",
		slog.String("file", dst),
		slog.Int("read", stats.Read),
		slog.Int("unique", stats.Written),
	)
	return nil
}

func intersect(args []string, stdout io.Writer) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("intersect takes <a> <b> [dst]")
	}
	if len(args) == 3 {
		n, err := lineset.IntersectFiles(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		slog.Info("common lines written", slog.String("file", args[2]), slog.Int("count", n))
		return nil
	}

	a, err := lineset.ReadFile(args[0])
	if err != nil {
		return err
	}
	b, err := lineset.ReadFile(args[1])
	if err != nil {
		return err
	}
	common := lineset.Intersect(a, b)
	if err := lineset.Write(stdout, common); err != nil {
		return err
	}
	slog.Info("common lines", slog.Int("count", len(common)))
	return nil
}

func count(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("count takes at least one file")
	}
	for _, path := range args {
		lines, err := lineset.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d\t%s\n", lineset.CountNonBlank(lines), path)
	}
	return nil
}
