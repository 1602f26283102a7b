package cli

import (
	"context"

	"github.com/robert-malhotra/h5slab/hdf5"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(s *session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	long := fs.BoolP("long", "l", false, "show type and shape of datasets")

	c := &Command{
		Flags: fs,
		Usage: "ls <file> [group] [flags]",
		Short: "List the members of a group",
		Long: `List the links in a group, the root group by default. Groups end in
'/'; soft and external links show their targets.`,
	}
	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) < 1 || len(args) > 2 {
			return argsError(c, "<file> [group]", args)
		}
		f, err := s.open(ctx, args[0])
		if err != nil {
			return err
		}
		group := "/"
		if len(args) == 2 {
			group = args[1]
		}
		return listGroup(o, f.Root(), group, *long)
	}
	return c
}

// listGroup prints the members of the group at p, relative to dir.
func listGroup(o *IO, dir *hdf5.Group, p string, long bool) error {
	g, err := dir.OpenGroup(p)
	if err != nil {
		return err
	}
	links, err := g.Links()
	if err != nil {
		return err
	}
	for _, l := range links {
		switch l.Kind {
		case hdf5.SoftLink:
			o.Printf("%s -> %s\n", l.Name, l.Target)
			continue
		case hdf5.ExternalLink:
			o.Printf("%s -> %s:%s\n", l.Name, l.File, l.Target)
			continue
		}
		obj, err := g.Object(l.Name)
		if err != nil {
			o.Warn("%s: %v", l.Name, err)
			o.Println(l.Name)
			continue
		}
		switch obj := obj.(type) {
		case *hdf5.Group:
			o.Println(l.Name + "/")
		case *hdf5.Dataset:
			if long {
				o.Printf("%s  %s\n", l.Name, describeDataset(obj))
			} else {
				o.Println(l.Name)
			}
		}
	}
	return nil
}
