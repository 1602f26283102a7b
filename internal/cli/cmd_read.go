package cli

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/natefinch/atomic"

	flag "github.com/spf13/pflag"
)

// ReadCmd returns the read command.
func ReadCmd(s *session) *Command {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	begin := fs.StringP("begin", "b", "", "first index of the region, comma separated (default origin)")
	end := fs.StringP("end", "e", "", "index one past the region, comma separated (default shape)")
	typ := fs.StringP("type", "t", "", "element type the dataset must hold (default the stored type)")
	out := fs.StringP("out", "o", "", "write to `file` instead of stdout, replacing it atomically")
	format := fs.StringP("format", "f", "text", "output format: text or raw (little-endian)")

	c := &Command{
		Flags: fs,
		Usage: "read <file> <dataset> [flags]",
		Short: "Read a region of a dataset",
		Long: `Read the half-open region [begin, end) of a dataset and print it.
Coordinates are in on-disk axis order, also for datasets whose shape is
exposed reversed. Without --begin and --end the whole dataset is read.
--type makes the read fail unless the dataset stores that element type.

Text output has one line per innermost row, prefixed with the indices of
the outer axes. Raw output is the elements in row-major order,
little-endian.`,
	}
	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) != 2 {
			return argsError(c, "<file> <dataset>", args)
		}
		if *format != "text" && *format != "raw" {
			return fmt.Errorf("%w: --format must be text or raw, got %q", errUsage, *format)
		}
		b, err := parseIndex(*begin)
		if err != nil {
			return err
		}
		e, err := parseIndex(*end)
		if err != nil {
			return err
		}
		f, err := s.open(ctx, args[0])
		if err != nil {
			return err
		}
		a, err := s.openArray(f, args[1], *typ)
		if err != nil {
			return err
		}
		defer a.Close()

		b, e = bounds(a, b, e)
		r, err := a.read(b, e)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if *format == "raw" {
			err = r.writeRaw(&buf)
		} else {
			err = r.writeText(&buf)
		}
		if err != nil {
			return err
		}
		if *out == "" {
			_, err = buf.WriteTo(o.Out())
			return err
		}
		path := *out
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.workDir, path)
		}
		n := buf.Len()
		if err := atomic.WriteFile(path, &buf); err != nil {
			return fmt.Errorf("writing %s: %w", *out, err)
		}
		o.ErrPrintf("wrote %d bytes, shape %s, to %s\n", n, formatShape(r.Shape()), *out)
		return nil
	}
	return c
}
