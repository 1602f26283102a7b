package cli

import (
	"context"
	"path/filepath"

	"github.com/robert-malhotra/h5slab/internal/source"

	flag "github.com/spf13/pflag"
)

// FetchCmd returns the fetch command.
func FetchCmd(s *session) *Command {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)

	c := &Command{
		Flags: fs,
		Usage: "fetch <s3-uri> <path>",
		Short: "Download an S3 object to a local file",
		Long: `Download an s3:// object in concurrent parts and replace the local file
atomically once complete. Use it to stage files that are read many times.`,
	}
	c.Exec = func(ctx context.Context, o *IO, args []string) error {
		if len(args) != 2 {
			return argsError(c, "<s3-uri> <path>", args)
		}
		dst := args[1]
		if !filepath.IsAbs(dst) {
			dst = filepath.Join(s.workDir, dst)
		}
		n, err := source.Stage(ctx, args[0], dst, s.sourceOptions()...)
		if err != nil {
			return err
		}
		o.Printf("fetched %d bytes to %s\n", n, args[1])
		return nil
	}
	return c
}
