// imgadm is the operator CLI for the image engine: it inspects and
// manipulates the per-tenant image records and their shared backing blobs
// directly against the configured datacenter services.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "imgadm",
		Usage: "administer datacenter docker images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "/etc/imgadm.toml",
				Usage: "engine configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			listCmd,
			inspectCmd,
			historyCmd,
			tagCmd,
			rmiCmd,
			pullCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
