package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/greenbaum-institute/sdc-docker/images"
)

var pullCmd = &cli.Command{
	Name:      "pull",
	Usage:     "pull an image from a registry into a tenant's account",
	ArgsUsage: "NAME",
	Flags: []cli.Flag{
		ownerFlag,
		&cli.StringFlag{
			Name:  "registry-auth",
			Usage: "base64 registry credentials, forwarded to the pull job",
		},
	},
	Action: pullImage,
}

func pullImage(c *cli.Context) error {
	if err := requireArgs(c, 1, "imgadm pull --owner UUID NAME"); err != nil {
		return err
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	// Progress goes straight to stdout, one JSON message per line, the
	// same framing the docker endpoint streams.
	return engine.PullImage(c.Context, images.PullRequest{
		Name:               c.Args().First(),
		Owner:              c.String("owner"),
		RegistryAuthHeader: c.String("registry-auth"),
	}, os.Stdout)
}
