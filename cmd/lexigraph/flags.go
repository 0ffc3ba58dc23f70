package lexigraph

import (
	"github.com/spf13/cobra"

	"github.com/soundprediction/lexigraph/pkg/config"
)

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("host") {
		cfg.Server.Host = serverHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}
	if flags.Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if flags.Changed("db-driver") {
		cfg.Database.Driver, _ = flags.GetString("db-driver")
	}
	if flags.Changed("db-uri") {
		cfg.Database.URI, _ = flags.GetString("db-uri")
	}
	if flags.Changed("fixture") {
		cfg.Database.FixturePath, _ = flags.GetString("fixture")
	}
	if flags.Changed("a2a-transport") {
		cfg.A2A.Transport, _ = flags.GetString("a2a-transport")
	}
}
