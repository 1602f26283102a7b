package cli

import (
	"context"

	"github.com/robert-malhotra/h5slab/internal/config"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, s.cfg, s.sources)
		},
	}
}

func execPrintConfig(o *IO, cfg config.Config, sources config.Sources) error {
	formatted, err := config.Format(cfg)
	if err != nil {
		return err
	}
	o.Println(formatted)

	o.Println()
	o.Println("# sources")
	if sources.Global == "" && sources.Project == "" {
		o.Println("(defaults only)")
		return nil
	}
	if sources.Global != "" {
		o.Println("global_config=" + sources.Global)
	}
	if sources.Project != "" {
		o.Println("project_config=" + sources.Project)
	}
	return nil
}
