package cli

import (
	"context"

	"github.com/robert-malhotra/h5slab/hdf5"
	"github.com/robert-malhotra/h5slab/slab"

	flag "github.com/spf13/pflag"
)

// ShapeCmd returns the shape command.
func ShapeCmd(s *session) *Command {
	fs := flag.NewFlagSet("shape", flag.ContinueOnError)

	c := &Command{
		Flags: fs,
		Usage: "shape <file> <dataset>",
		Short: "Show the shape a dataset is exposed with",
		Long: `Show a dataset's shape as read and range commands see it. Datasets
carrying a "` + slab.ReverseShapeAttr + `" attribute expose their axes in reverse
order; the on-disk shape is shown as well.`,
	}
	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) != 2 {
			return argsError(c, "<file> <dataset>", args)
		}
		f, err := s.open(ctx, args[0])
		if err != nil {
			return err
		}
		return printShape(o, s, f, args[1])
	}
	return c
}

func printShape(o *IO, s *session, f *hdf5.File, name string) error {
	a, err := s.openArray(f, name, "")
	if err != nil {
		return err
	}
	defer a.Close()

	o.Printf("shape: %s\n", formatShape(a.Shape()))
	o.Printf("order: %s\n", a.Order())
	if a.Order() == slab.Reversed {
		o.Printf("disk: %s\n", formatShape(reversedShape(a.Shape())))
	}
	return nil
}
