// Package cli implements the h5slab command line: inspecting HDF5 files
// and reading hyperslabs from local or object-store sources.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/robert-malhotra/h5slab/internal/config"
	"github.com/robert-malhotra/h5slab/slab"

	flag "github.com/spf13/pflag"
)

var (
	errUsage          = errors.New("usage")
	errUnknownCommand = errors.New("unknown command")
)

type globalFlags struct {
	cwd        string
	configPath string
	logLevel   string
	mmap       bool
	cacheBytes int64
	rateLimit  int64
	fallback   string
	stats      bool
	help       bool
}

func newGlobalFlagSet(g *globalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("h5slab", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&g.cwd, "cwd", "C", "", "run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "use config `file` instead of "+config.FileName)
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVar(&g.mmap, "mmap", false, "memory-map local files")
	fs.Int64Var(&g.cacheBytes, "cache-bytes", 0, "block cache budget for remote files, 0 disables")
	fs.Int64Var(&g.rateLimit, "rate-limit", 0, "remote read limit in bytes per second, 0 is unlimited")
	fs.StringVar(&g.fallback, "fallback", "", "non-contiguous view strategy: rebind or copy")
	fs.BoolVar(&g.stats, "stats", false, "print read and cache statistics to stderr")
	fs.BoolVarP(&g.help, "help", "h", false, "show help")
	return fs
}

// apply copies explicitly set flags over cfg.
func (g *globalFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if fs.Changed("mmap") {
		cfg.Mmap = g.mmap
	}
	if fs.Changed("cache-bytes") {
		cfg.CacheBytes = g.cacheBytes
	}
	if fs.Changed("rate-limit") {
		cfg.RateLimitBytes = g.rateLimit
	}
	if fs.Changed("fallback") {
		cfg.Fallback = g.fallback
	}
}

// Run is the main entry point. args includes the program name. Returns
// the exit code. A signal on sigCh cancels the running command.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	var g globalFlags
	fs := newGlobalFlagSet(&g)
	if len(args) > 0 {
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, fs, nil)
		return 1
	}
	rest := fs.Args()

	workDir := g.cwd
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)
			return 1
		}
	}

	cfg, sources, err := config.Load(workDir, g.configPath, env)
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}
	g.apply(fs, &cfg)
	if err := cfg.Validate(); err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	s := &session{
		cfg:     cfg,
		sources: sources,
		workDir: workDir,
		vars:    env,
		metrics: &slab.BasicMetricsCollector{},
		logger: slab.NewLogger(slog.NewTextHandler(errOut, &slog.HandlerOptions{
			Level: cfg.Level(),
		})),
	}
	commands := s.commands()

	if g.help || len(rest) == 0 {
		printUsage(out, fs, commands)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(in, out, errOut)
	name := rest[0]
	for _, c := range commands {
		if c.Name() == name {
			code := c.Run(ctx, o, rest[1:])
			if g.stats {
				s.printStats(o)
			}
			s.closeAll()
			return code
		}
	}
	fprintln(errOut, "error:", fmt.Errorf("%w: %s", errUnknownCommand, name))
	printUsage(errOut, fs, commands)
	return 1
}

func (s *session) commands() []*Command {
	return []*Command{
		InfoCmd(s),
		LsCmd(s),
		ShapeCmd(s),
		ReadCmd(s),
		FetchCmd(s),
		ShellCmd(s),
		PrintConfigCmd(s),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, fs *flag.FlagSet, commands []*Command) {
	fprintln(w, `h5slab - read hyperslabs from HDF5 files

Usage: h5slab [global flags] <command> [args]

Files are local paths, file://path, s3://bucket/key or
minio://host[:port]/bucket/key.

Global flags:`)
	var buf strings.Builder
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
	_, _ = io.WriteString(w, buf.String())

	if len(commands) == 0 {
		return
	}
	fprintln(w)
	fprintln(w, "Commands:")
	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}
	fprintln(w)
	fprintln(w, "Run 'h5slab <command> --help' for command flags.")
}
