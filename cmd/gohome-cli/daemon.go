package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/core"
)

func pluginsCommand() *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "list plugins of a running daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http-addr", EnvVars: []string{"GOHOME_HTTP_ADDR"}},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list active plugins",
				Action: func(c *cli.Context) error {
					var plugins []core.PluginSummary
					if err := getDaemonJSON(c, "/plugins", &plugins); err != nil {
						return err
					}
					out := outputMode{json: c.Bool("json")}
					if out.json {
						out.printJSON(plugins)
						return nil
					}
					rows := [][]string{{"ID", "NAME", "VERSION", "STATUS"}}
					for _, p := range plugins {
						rows = append(rows, []string{p.PluginID, p.DisplayName, p.Version, p.Status})
					}
					out.table(rows)
					return nil
				},
			},
			{
				Name:      "describe",
				Usage:     "describe one plugin",
				ArgsUsage: "<plugin_id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("missing plugin id")
					}
					var desc core.PluginDescriptor
					if err := getDaemonJSON(c, "/plugins/"+id, &desc); err != nil {
						return err
					}
					if c.Bool("json") {
						outputMode{json: true}.printJSON(desc)
						return nil
					}
					fmt.Printf("id: %s\n", desc.PluginID)
					fmt.Printf("name: %s\n", desc.DisplayName)
					fmt.Printf("version: %s\n", desc.Version)
					fmt.Printf("status: %s\n", desc.Status)
					if desc.HealthMessage != "" {
						fmt.Printf("health: %s\n", desc.HealthMessage)
					}
					fmt.Println("endpoints:")
					for _, endpoint := range desc.Endpoints {
						fmt.Printf("  - %s\n", endpoint)
					}
					fmt.Println("dashboards:")
					for _, dash := range desc.Dashboards {
						fmt.Printf("  - %s (%s)\n", dash.Name, dash.Path)
					}
					fmt.Println("agents_md:")
					fmt.Println(desc.AgentsMD)
					return nil
				},
			},
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:      "health",
		Usage:     "query the daemon gRPC health service",
		ArgsUsage: "[service]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "grpc-addr", EnvVars: []string{"GOHOME_GRPC_ADDR"}},
		},
		Action: func(c *cli.Context) error {
			addr := c.String("grpc-addr")
			if addr == "" {
				addr = dialAddr(daemonConfig(c).Core.GRPCAddr)
			}
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial: %w", err)
			}
			defer conn.Close()

			ctx, cancel := timeoutContext(c)
			defer cancel()
			resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: c.Args().First()})
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			fmt.Println(resp.GetStatus().String())
			return nil
		},
	}
}

func getDaemonJSON(c *cli.Context, path string, out any) error {
	addr := c.String("http-addr")
	if addr == "" {
		addr = dialAddr(daemonConfig(c).Core.HTTPAddr)
	}

	ctx, cancel := timeoutContext(c)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// daemonConfig falls back to defaults when no config can be loaded, so the
// daemon commands work on hosts without purifier credentials.
func daemonConfig(c *cli.Context) *config.Config {
	cfg, err := loadConfig(c)
	if err != nil {
		return &config.Config{Core: config.CoreConfig{
			GRPCAddr: config.DefaultGRPCAddr,
			HTTPAddr: config.DefaultHTTPAddr,
		}}
	}
	return cfg
}

// dialAddr turns a listen address into one a client can dial.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
