package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var tagCmd = &cli.Command{
	Name:      "tag",
	Usage:     "give an image an additional repo:tag name",
	ArgsUsage: "NAME REPO:TAG",
	Flags:     []cli.Flag{ownerFlag},
	Action:    tagImage,
}

func tagImage(c *cli.Context) error {
	if err := requireArgs(c, 2, "imgadm tag --owner UUID NAME REPO:TAG"); err != nil {
		return err
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	tag, err := engine.TagImage(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("owner"))
	if err != nil {
		return err
	}
	fmt.Printf("Tagged: %s\n", tag.RepoTag())
	return nil
}
