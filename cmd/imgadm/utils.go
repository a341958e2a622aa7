package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/greenbaum-institute/sdc-docker/images"
	"github.com/greenbaum-institute/sdc-docker/pkg/dcconfig"
)

// ownerFlag scopes a command to one tenant.  Every engine operation is
// per-owner; there is no implicit default account.
var ownerFlag = &cli.StringFlag{
	Name:     "owner",
	Usage:    "tenant account UUID",
	Required: true,
}

func loadEngine(c *cli.Context) (*images.Engine, error) {
	cfg, err := dcconfig.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg.NewEngine()
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}
