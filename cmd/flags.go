package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// formatValue is a pflag.Value restricted to the report formats.
type formatValue string

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string { return string(*f) }

func (f *formatValue) Set(s string) error {
	switch v := strings.ToLower(s); v {
	case formatTable, formatJSON, formatYAML:
		*f = formatValue(v)
		return nil
	default:
		return fmt.Errorf("unsupported format %q (supported: table, json, yaml)", s)
	}
}

func (f *formatValue) Type() string { return "format" }

func addFormatFlag(cmd *cobra.Command, target *formatValue) {
	*target = formatTable
	cmd.Flags().VarP(target, "format", "f", "Output format (table|json|yaml)")
}

// addServeFlags adds the preview server flags and binds them to the
// server section of the configuration.
func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8000, "Port to serve on")
	cmd.Flags().String("host", "localhost", "Host to bind to")
	cmd.Flags().Bool("open", false, "Open the browser after the first build")
	cmd.Flags().Duration("debounce", 0, "Quiet period before a rebuild (default from config)")
}

// bindServeFlags binds the serve flags that were set on the command line.
func bindServeFlags(cmd *cobra.Command) {
	for key, name := range map[string]string{
		"server.port":    "port",
		"server.host":    "host",
		"server.open":    "open",
		"watch.debounce": "debounce",
	} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			viper.Set(key, f.Value.String())
		}
	}
}
