package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/h5slab/hdf5"
	"github.com/robert-malhotra/h5slab/internal/filter"
	"github.com/robert-malhotra/h5slab/internal/message"

	flag "github.com/spf13/pflag"
)

// InfoCmd returns the info command.
func InfoCmd(s *session) *Command {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	noAttrs := fs.Bool("no-attrs", false, "omit attributes")

	c := &Command{
		Flags: fs,
		Usage: "info <file> [flags]",
		Short: "Describe every object in a file",
		Long: `Print the superblock version and every group, dataset and link in the
file, depth first. Datasets show their element type, shape and storage:
layout, chunk index, chunk shape, allocated chunks and filters.`,
	}
	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) != 1 {
			return argsError(c, "<file>", args)
		}
		f, err := s.open(ctx, args[0])
		if err != nil {
			return err
		}
		o.Printf("file: %s\n", args[0])
		o.Printf("size: %d\n", f.Size())
		o.Printf("superblock: %d\n", f.Version())
		return hdf5.Walk(f.Root(), func(e hdf5.Entry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			printEntry(o, e, !*noAttrs)
			return nil
		})
	}
	return c
}

func printEntry(o *IO, e hdf5.Entry, withAttrs bool) {
	switch {
	case e.Err != nil:
		o.Warn("%s: %v", e.Path, e.Err)
		o.Printf("%s  unreadable\n", e.Path)
		return
	case e.Link.Kind == hdf5.SoftLink:
		o.Printf("%s -> %s  soft link\n", e.Path, e.Link.Target)
		return
	case e.Link.Kind == hdf5.ExternalLink:
		o.Printf("%s -> %s:%s  external link\n", e.Path, e.Link.File, e.Link.Target)
		return
	}
	switch obj := e.Object.(type) {
	case *hdf5.Group:
		o.Printf("%s  group\n", e.Path)
	case *hdf5.Dataset:
		desc, err := describeStorage(obj)
		if err != nil {
			o.Warn("%s: %v", e.Path, err)
		}
		o.Printf("%s  %s\n", e.Path, desc)
	}
	if withAttrs && e.Object != nil {
		for _, a := range e.Object.Attrs() {
			o.Printf("  @%s\n", describeAttr(a))
		}
	}
}

// describeDataset returns "dataset <type> <shape>".
func describeDataset(ds *hdf5.Dataset) string {
	return "dataset " + ds.TypeName() + " " + formatShape(ds.Shape())
}

// describeStorage extends describeDataset with the storage layout. The
// description is returned even when walking the chunk index fails.
func describeStorage(ds *hdf5.Dataset) (string, error) {
	var b strings.Builder
	b.WriteString(describeDataset(ds))
	st, err := ds.Storage()
	b.WriteString(" ")
	b.WriteString(st.Layout.String())
	if st.Layout == message.LayoutChunked {
		fmt.Fprintf(&b, " index=%s chunk=%s", st.Index, formatShape(st.Chunk))
		if err == nil {
			fmt.Fprintf(&b, " allocated=%d/%d", st.Allocated, st.Chunks)
		}
	} else if st.Allocated == 0 {
		b.WriteString(" unallocated")
	}
	if len(st.Filters) > 0 {
		names := make([]string, len(st.Filters))
		for i, f := range st.Filters {
			names[i] = filter.Name(f)
		}
		b.WriteString(" filters=" + strings.Join(names, ","))
	}
	return b.String(), err
}

// describeAttr returns "name = value" with the value decoded.
func describeAttr(a *hdf5.Attribute) string {
	v, err := a.Value()
	if err != nil {
		return fmt.Sprintf("%s %s = <%v>", a.Name(), a.TypeName(), err)
	}
	return a.Name() + " = " + formatValue(v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
