package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"

	"github.com/robert-malhotra/h5slab/hdf5"

	flag "github.com/spf13/pflag"
)

var shellCommands = []string{
	"ls", "cd", "pwd", "shape", "read", "attrs", "stats", "help", "exit", "quit",
}

// ShellCmd returns the shell command.
func ShellCmd(s *session) *Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	history := fs.String("history", "", "history `file` (default ~/.h5slab_history)")

	c := &Command{
		Flags: fs,
		Usage: "shell <file> [flags]",
		Short: "Explore a file interactively",
		Long: `Open a file once and run ls, cd, shape, read and attrs against it.
Type 'help' inside the shell for the command list. History is kept
between sessions when stdin is a terminal.`,
	}
	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) != 1 {
			return argsError(c, "<file>", args)
		}
		f, err := s.open(ctx, args[0])
		if err != nil {
			return err
		}
		sh := &shell{s: s, o: o, f: f, cwd: "/"}

		if o.in == os.Stdin {
			l := liner.NewLiner()
			defer l.Close()
			l.SetCtrlCAborts(true)
			l.SetCompleter(sh.complete)

			histPath := *history
			if histPath == "" {
				histPath = s.historyPath()
			}
			if h, err := os.Open(histPath); err == nil {
				_, _ = l.ReadHistory(h)
				h.Close()
			}
			defer func() {
				if err := saveHistory(l, histPath); err != nil {
					s.logger.Warn("saving history", "path", histPath, "error", err)
				}
			}()
			return sh.loop(ctx, l)
		}
		return sh.loop(ctx, &lineReader{sc: bufio.NewScanner(o.in)})
	}
	return c
}

// prompter reads one command line at a time.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// lineReader reads commands from a non-terminal input.
type lineReader struct {
	sc *bufio.Scanner
}

func (r *lineReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *lineReader) AppendHistory(string) {}

func (s *session) historyPath() string {
	home := s.vars["HOME"]
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".h5slab_history")
}

func saveHistory(l *liner.State, path string) error {
	if path == "" {
		return nil
	}
	var buf bytes.Buffer
	if _, err := l.WriteHistory(&buf); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

type shell struct {
	s   *session
	o   *IO
	f   *hdf5.File
	cwd string
}

func (sh *shell) loop(ctx context.Context, p prompter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := p.Prompt(sh.cwd + "> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.AppendHistory(line)

		fields := strings.Fields(line)
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if err := sh.exec(fields[0], fields[1:]); err != nil {
			sh.o.ErrPrintln("error:", err)
		}
	}
}

func (sh *shell) exec(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		sh.help()
	case "pwd":
		sh.o.Println(sh.cwd)
	case "ls":
		long := len(args) > 0 && args[0] == "-l"
		if long {
			args = args[1:]
		}
		p := "."
		if len(args) > 0 {
			p = args[0]
		}
		return sh.within(func(g *hdf5.Group) error { return listGroup(sh.o, g, p, long) })
	case "cd":
		target := "/"
		if len(args) > 0 {
			target = sh.resolve(args[0])
		}
		g, err := sh.f.OpenGroup(target)
		if err != nil {
			return err
		}
		sh.cwd = g.Path()
	case "shape":
		if len(args) != 1 {
			return fmt.Errorf("%w: shape <dataset>", errUsage)
		}
		return printShape(sh.o, sh.s, sh.f, sh.resolve(args[0]))
	case "read":
		return sh.read(args)
	case "attrs":
		p := sh.cwd
		if len(args) > 0 {
			p = sh.resolve(args[0])
		}
		obj, err := sh.f.Root().Object(p)
		if err != nil {
			return err
		}
		for _, a := range obj.Attrs() {
			sh.o.Println(describeAttr(a))
		}
	case "stats":
		sh.s.printStats(sh.o)
	default:
		return fmt.Errorf("%w: %s (type 'help' for commands)", errUnknownCommand, cmd)
	}
	return nil
}

// read handles "read <dataset> [begin [end [type]]]".
func (sh *shell) read(args []string) error {
	if len(args) < 1 || len(args) > 4 {
		return fmt.Errorf("%w: read <dataset> [begin [end [type]]]", errUsage)
	}
	var idx [2][]uint64
	for i := range idx {
		if len(args) > i+1 {
			v, err := parseIndex(args[i+1])
			if err != nil {
				return err
			}
			idx[i] = v
		}
	}
	typ := ""
	if len(args) == 4 {
		typ = args[3]
	}
	a, err := sh.s.openArray(sh.f, sh.resolve(args[0]), typ)
	if err != nil {
		return err
	}
	defer a.Close()
	begin, end := bounds(a, idx[0], idx[1])
	r, err := a.read(begin, end)
	if err != nil {
		return err
	}
	return r.writeText(sh.o.Out())
}

func (sh *shell) within(fn func(g *hdf5.Group) error) error {
	g, err := sh.f.OpenGroup(sh.cwd)
	if err != nil {
		return err
	}
	return fn(g)
}

// resolve makes p absolute relative to the current group.
func (sh *shell) resolve(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(sh.cwd, p)
}

func (sh *shell) complete(line string) []string {
	fields := strings.Fields(line)
	if len(fields) <= 1 && !strings.HasSuffix(line, " ") {
		var out []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	}
	g, err := sh.f.OpenGroup(sh.cwd)
	if err != nil {
		return nil
	}
	members, err := g.Members()
	if err != nil {
		return nil
	}
	prefix, partial := line, ""
	if i := strings.LastIndexByte(line, ' '); i >= 0 {
		prefix, partial = line[:i+1], line[i+1:]
	}
	var out []string
	for _, m := range members {
		if strings.HasPrefix(m, partial) {
			out = append(out, prefix+m)
		}
	}
	return out
}

func (sh *shell) help() {
	sh.o.Println(`Commands:
  ls [-l] [group]                    List members of a group
  cd [group]                         Change the current group (default /)
  pwd                                Print the current group
  shape <dataset>                    Show a dataset's exposed shape
  read <dataset> [begin [end [type]]]
                                     Print a region; begin and end are
                                     comma separated, e.g. 0,0 2,3
  attrs [object]                     List attributes
  stats                              Show read and cache statistics
  help                               Show this help
  exit / quit                        Leave the shell`)
}
