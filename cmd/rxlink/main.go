package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/openfpv/radiolink"
	"github.com/openfpv/radiolink/internal/utils"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to rxlink config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "rxlink config in YAML, typically passed in as an environment var",
		EnvVars: []string{"RXLINK_CONFIG"},
	},
	&cli.StringFlag{
		Name:  "log-level",
		Usage: "overrides the log_level of the config (nothing, error, info, debug)",
	},
}

var linkFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "stream",
		Usage: "stream to simulate, it must be configured",
		Value: 3,
	},
	&cli.IntFlag{
		Name:  "size",
		Usage: "payload size in bytes",
		Value: 1000,
	},
	&cli.Float64Flag{
		Name:  "loss",
		Usage: "loss probability on each interface",
	},
	&cli.Float64Flag{
		Name:  "duplicate",
		Usage: "probability an interface delivers a packet twice",
	},
	&cli.Float64Flag{
		Name:  "reorder",
		Usage: "probability an interface holds a packet back",
	},
	&cli.IntFlag{
		Name:  "reorder-depth",
		Usage: "number of packets a held packet is delayed by",
		Value: 4,
	},
	&cli.Float64Flag{
		Name:  "bad-crc",
		Usage: "probability a packet fails the radio header check",
	},
	&cli.Float64Flag{
		Name:  "corrupt",
		Usage: "probability a payload bit is flipped undetected by the radio",
	},
	&cli.Int64Flag{
		Name:  "seed",
		Usage: "seed of the simulated link",
		Value: 1,
	},
}

func main() {
	app := &cli.App{
		Name:        "rxlink",
		Usage:       "FPV radio link receive core",
		Description: "reassembles FEC protected radio streams and accounts radio link statistics",
		Flags:       baseFlags,
		Commands: []*cli.Command{
			{
				Name:   "simulate",
				Usage:  "pushes payloads over a simulated lossy link and prints what the receiver made of them",
				Action: simulate,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "payloads",
						Usage: "number of payloads to send",
						Value: 10000,
					},
					&cli.StringFlag{
						Name:  "frames-out",
						Usage: "write the final stats snapshot frame to `file`",
					},
				}, linkFlags...),
			},
			{
				Name:   "serve",
				Usage:  "runs the receiver on a simulated link and serves Prometheus metrics",
				Action: serve,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "rate",
						Usage: "payloads per second",
						Value: 500,
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "stop after this time, run until interrupted if 0",
					},
					&cli.StringFlag{
						Name:  "metrics-listen",
						Usage: "overrides metrics.listen of the config",
					},
					&cli.StringFlag{
						Name:  "frames-out",
						Usage: "stream stats snapshot and payload frames to `file`, - for stdout",
					},
				}, linkFlags...),
			},
			{
				Name:   "dump-config",
				Usage:  "prints the effective config",
				Action: dumpConfig,
			},
			{
				Name:      "dump-frames",
				Usage:     "decodes a frames file",
				ArgsUsage: "file",
				Action:    dumpFrames,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*radiolink.Config, error) {
	var conf *radiolink.Config
	var err error
	switch {
	case c.String("config-body") != "":
		conf, err = radiolink.NewConfigFromYAML([]byte(c.String("config-body")))
	case c.String("config") != "":
		conf, err = radiolink.LoadConfig(c.String("config"))
	default:
		conf = radiolink.DefaultConfig()
	}
	if err != nil {
		return nil, err
	}
	if level := c.String("log-level"); level != "" {
		conf.LogLevel = level
	}
	logLevel, err := utils.ParseLogLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	utils.DefaultLogger.SetLogLevel(logLevel)
	return conf, nil
}
