package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var rmiCmd = &cli.Command{
	Name:      "rmi",
	Usage:     "delete or untag an image",
	ArgsUsage: "NAME",
	Flags: []cli.Flag{
		ownerFlag,
		&cli.BoolFlag{
			Name:  "force",
			Usage: "delete even when stopped workloads or extra tags reference the image",
		},
	},
	Action: deleteImage,
}

func deleteImage(c *cli.Context) error {
	if err := requireArgs(c, 1, "imgadm rmi --owner UUID NAME"); err != nil {
		return err
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	changes, err := engine.DeleteImage(c.Context, c.Args().First(), c.String("owner"), c.Bool("force"))
	if err != nil {
		return err
	}
	for _, change := range changes {
		switch {
		case change.Untagged != "":
			fmt.Printf("Untagged: %s\n", change.Untagged)
		case change.Deleted != "":
			fmt.Printf("Deleted: %s\n", change.Deleted)
		case change.Warning != "":
			fmt.Printf("Warning: %s\n", change.Warning)
		}
	}
	return nil
}
