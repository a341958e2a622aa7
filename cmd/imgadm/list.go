package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/docker/api/types/filters"
	"github.com/urfave/cli/v2"

	"github.com/greenbaum-institute/sdc-docker/images"
	"github.com/greenbaum-institute/sdc-docker/record"
)

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "list a tenant's images",
	Flags: []cli.Flag{
		ownerFlag,
		&cli.BoolFlag{
			Name:  "all",
			Usage: "include intermediate layers",
		},
		&cli.BoolFlag{
			Name:  "skip-v1",
			Usage: "leave out legacy v1 records",
		},
		&cli.BoolFlag{
			Name:  "skip-fleet",
			Usage: "leave out fleet-native images",
		},
		&cli.StringSliceFlag{
			Name:  "filter",
			Usage: "filter output (dangling=true, label=k=v)",
		},
	},
	Action: listImages,
}

func listImages(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	args := filters.NewArgs()
	for _, f := range c.StringSlice("filter") {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("invalid filter %q, expected name=value", f)
		}
		args.Add(name, value)
	}
	rows, err := engine.ListImages(c.Context, c.String("owner"), images.ListOptions{
		All:          c.Bool("all"),
		IncludeV1:    !c.Bool("skip-v1"),
		IncludeFleet: !c.Bool("skip-fleet"),
		Filters:      args,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE ID\tREPO TAGS\tCREATED\tSIZE")
	for _, row := range rows {
		created := "-"
		if row.Created > 0 {
			created = time.Unix(row.Created, 0).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			record.ShortID(row.ID), strings.Join(row.RepoTags, ","), created, row.Size)
	}
	return w.Flush()
}
