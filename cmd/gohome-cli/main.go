package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/joshp123/gohome-purifier/internal/config"
)

func main() {
	app := &cli.App{
		Name:  "gohome-cli",
		Usage: "control the air purifier and inspect a running gohome daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"GOHOME_CONFIG"},
				Usage:   "daemon config file (defaults to the first existing search path)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print JSON instead of tables",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log requests to stderr",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: config.DefaultRequestTimeout * 4,
			},
		},
		Commands: []*cli.Command{
			unitCommand(),
			presetsCommand(),
			presetCommand(),
			powerCommand(),
			airVolumeCommand(),
			humidityCommand(),
			controlCommand(),
			pluginsCommand(),
			healthCommand(),
			credentialsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	for _, path := range configSearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func configSearchPaths() []string {
	paths := []string{config.DefaultPath}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "gohome", "purifier.yaml"))
	}
	return paths
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(resolveConfigPath(c))
}
