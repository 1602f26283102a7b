// Command h5slab inspects HDF5 files and reads hyperslabs from them, from
// local disk, S3 or MinIO.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robert-malhotra/h5slab/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))
	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh))
}
