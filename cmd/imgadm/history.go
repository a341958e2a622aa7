package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/greenbaum-institute/sdc-docker/record"
)

var historyCmd = &cli.Command{
	Name:      "history",
	Usage:     "show an image's per-layer change log",
	ArgsUsage: "NAME",
	Flags:     []cli.Flag{ownerFlag},
	Action:    showHistory,
}

func showHistory(c *cli.Context) error {
	if err := requireArgs(c, 1, "imgadm history --owner UUID NAME"); err != nil {
		return err
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	entries, partial, err := engine.History(c.Context, c.Args().First(), c.String("owner"))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tCREATED BY\tSIZE\tTAGS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			record.ShortID(e.ID), e.CreatedBy, e.Size, strings.Join(e.Tags, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if partial {
		fmt.Fprintln(os.Stderr, "warning: ancestry is incomplete; older layers are not shown")
	}
	return nil
}
