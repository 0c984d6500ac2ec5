package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-purifier/plugins/purifier"
)

func newPurifierClient(c *cli.Context) (*purifier.Client, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := zap.NewNop()
	if c.Bool("verbose") {
		// development logger writes to stderr and keeps stdout for output
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, nil, nil, err
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	runtimeCfg, err := purifier.ConfigFromFile(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	transport, err := purifier.NewHTTPTransport(runtimeCfg.Credentials, runtimeCfg.BaseURL, runtimeCfg.Timeout,
		purifier.WithLogger(logger),
	)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return purifier.NewClient(transport, logger), ctx, cancel, nil
}

// withClient runs fn against a fresh client and prints its result.
func withClient(fn func(ctx context.Context, client *purifier.Client, c *cli.Context) (purifier.ControlResult, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, ctx, cancel, err := newPurifierClient(c)
		if err != nil {
			return err
		}
		defer cancel()

		result, err := fn(ctx, client, c)
		if err != nil {
			return err
		}
		printControlResult(outputMode{json: c.Bool("json")}, result)
		return nil
	}
}

func unitCommand() *cli.Command {
	return &cli.Command{
		Name:  "unit",
		Usage: "show the current unit state",
		Action: func(c *cli.Context) error {
			client, ctx, cancel, err := newPurifierClient(c)
			if err != nil {
				return err
			}
			defer cancel()

			info, err := client.QuerySnapshot(ctx)
			if err != nil {
				return err
			}
			printUnit(outputMode{json: c.Bool("json")}, info)
			return nil
		},
	}
}

func presetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "presets",
		Usage: "list mode presets",
		Action: func(c *cli.Context) error {
			out := outputMode{json: c.Bool("json")}
			if out.json {
				out.printJSON(purifier.Presets())
				return nil
			}
			rows := [][]string{{"PRESET", "MODE", "HUMIDITY"}}
			for _, name := range purifier.Presets() {
				preset, _ := purifier.LookupPreset(name)
				humidity := "kept"
				if preset.Change.Humidity != nil {
					humidity = preset.Change.Humidity.String()
				}
				rows = append(rows, []string{name, preset.Change.Mode.String(), humidity})
			}
			out.table(rows)
			return nil
		},
	}
}

func presetCommand() *cli.Command {
	return &cli.Command{
		Name:      "preset",
		Usage:     "switch to a mode preset",
		ArgsUsage: "<name>",
		Action: withClient(func(ctx context.Context, client *purifier.Client, c *cli.Context) (purifier.ControlResult, error) {
			name, err := resolvePreset(c.Args().First())
			if err != nil {
				return purifier.ControlResult{}, err
			}
			return client.ApplyPreset(ctx, name)
		}),
	}
}

func powerCommand() *cli.Command {
	return &cli.Command{
		Name:      "power",
		Usage:     "turn the unit on or off",
		ArgsUsage: "<on|off>",
		Action: withClient(func(ctx context.Context, client *purifier.Client, c *cli.Context) (purifier.ControlResult, error) {
			power, err := purifier.ParsePower(c.Args().First())
			if err != nil {
				return purifier.ControlResult{}, err
			}
			return client.SetPower(ctx, power)
		}),
	}
}

func airVolumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "airvol",
		Usage:     "set the fan speed (switches to autofan mode)",
		ArgsUsage: "<autofan|quiet|low|standard|turbo>",
		Action: withClient(func(ctx context.Context, client *purifier.Client, c *cli.Context) (purifier.ControlResult, error) {
			volume, err := purifier.ParseAirVolume(c.Args().First())
			if err != nil {
				return purifier.ControlResult{}, err
			}
			return client.SetAirVolume(ctx, volume)
		}),
	}
}

func humidityCommand() *cli.Command {
	return &cli.Command{
		Name:      "humidity",
		Usage:     "set the humidification target",
		ArgsUsage: "<off|low|standard|high|auto>",
		Action: withClient(func(ctx context.Context, client *purifier.Client, c *cli.Context) (purifier.ControlResult, error) {
			humidity, err := purifier.ParseHumidity(c.Args().First())
			if err != nil {
				return purifier.ControlResult{}, err
			}
			return client.SetHumidity(ctx, humidity)
		}),
	}
}

func controlCommand() *cli.Command {
	return &cli.Command{
		Name:  "control",
		Usage: "apply a partial control change",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "power"},
			&cli.StringFlag{Name: "mode"},
			&cli.StringFlag{Name: "airvol"},
			&cli.StringFlag{Name: "humidity"},
			&cli.StringSliceFlag{
				Name:  "preserve",
				Usage: "dimensions to carry over when unset: power, mode, airvol, humidity, all",
			},
		},
		Action: withClient(func(ctx context.Context, client *purifier.Client, c *cli.Context) (purifier.ControlResult, error) {
			change, err := changeFromFlags(c)
			if err != nil {
				return purifier.ControlResult{}, err
			}
			preserve, err := purifier.ParsePreserve(c.StringSlice("preserve"))
			if err != nil {
				return purifier.ControlResult{}, err
			}
			return client.UpdateControl(ctx, change, preserve)
		}),
	}
}

func changeFromFlags(c *cli.Context) (purifier.ControlChange, error) {
	var change purifier.ControlChange
	if c.IsSet("power") {
		v, err := purifier.ParsePower(c.String("power"))
		if err != nil {
			return change, err
		}
		change.Power = &v
	}
	if c.IsSet("mode") {
		v, err := purifier.ParseMode(c.String("mode"))
		if err != nil {
			return change, err
		}
		change.Mode = &v
	}
	if c.IsSet("airvol") {
		v, err := purifier.ParseAirVolume(c.String("airvol"))
		if err != nil {
			return change, err
		}
		change.AirVolume = &v
	}
	if c.IsSet("humidity") {
		v, err := purifier.ParseHumidity(c.String("humidity"))
		if err != nil {
			return change, err
		}
		change.Humidity = &v
	}
	return change, nil
}

func printUnit(out outputMode, info purifier.UnitInfo) {
	if out.json {
		out.printJSON(info)
		return
	}
	rows := [][]string{
		{"NAME", info.Name},
		{"POWER", info.Control.Power.String()},
		{"MODE", info.Control.Mode.String()},
		{"AIR VOLUME", info.Control.AirVolume.String()},
		{"HUMIDITY", info.Control.Humidity.String()},
	}
	rows = appendReading(rows, "TEMPERATURE", info.Sensors.TemperatureCelsius)
	rows = appendReading(rows, "ROOM HUMIDITY", info.Sensors.HumidityPercent)
	rows = appendReading(rows, "PM2.5", info.Sensors.PM25)
	rows = appendReading(rows, "DUST", info.Sensors.Dust)
	rows = appendReading(rows, "ODOR", info.Sensors.Odor)
	if info.Sensors.ErrorCode != "" {
		rows = append(rows, []string{"ERROR", info.Sensors.ErrorCode})
	}
	out.table(rows)
}

func appendReading(rows [][]string, label string, value *float64) [][]string {
	if value == nil {
		return rows
	}
	return append(rows, []string{label, strconv.FormatFloat(*value, 'f', -1, 64)})
}

func printControlResult(out outputMode, result purifier.ControlResult) {
	if out.json {
		out.printJSON(result)
		return
	}
	rows := [][]string{{"RESULT", result.Result}}
	ctrl := result.Control
	if ctrl.Power != nil {
		rows = append(rows, []string{"POWER", ctrl.Power.String()})
	}
	if ctrl.Mode != nil {
		rows = append(rows, []string{"MODE", ctrl.Mode.String()})
	}
	if ctrl.AirVolume != nil {
		rows = append(rows, []string{"AIR VOLUME", ctrl.AirVolume.String()})
	}
	if ctrl.Humidity != nil {
		rows = append(rows, []string{"HUMIDITY", ctrl.Humidity.String()})
	}
	rows = append(rows, []string{"SENT", fmt.Sprint(result.Params)})
	out.table(rows)
}
