package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var inspectCmd = &cli.Command{
	Name:      "inspect",
	Usage:     "show one image in detail",
	ArgsUsage: "NAME",
	Flags:     []cli.Flag{ownerFlag},
	Action:    inspectImage,
}

func inspectImage(c *cli.Context) error {
	if err := requireArgs(c, 1, "imgadm inspect --owner UUID NAME"); err != nil {
		return err
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	ins, err := engine.InspectImage(c.Context, c.Args().First(), c.String("owner"))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(ins, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
