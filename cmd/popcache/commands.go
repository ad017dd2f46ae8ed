package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	cli "github.com/urfave/cli/v2"
)

var refreshCmd = &cli.Command{
	Name:  "refresh",
	Usage: "rebuild the ranking once from PostgreSQL",
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		st, err := e.dialStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		pool, src, err := e.connectSource(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		start := time.Now()
		if err := e.popularity(st, src, nil).Refresh(ctx); err != nil {
			return err
		}
		e.log.Info().Dur("took", time.Since(start)).Msg("ranking refreshed")
		return nil
	},
}

var topCmd = &cli.Command{
	Name:  "top",
	Usage: "print the cached ranking",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "n",
			Usage: "number of items (default: popularity.limit)",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		st, err := e.dialStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		items, err := e.popularity(st, readOnly, nil).TopN(ctx, cctx.Int("n"))
		if err != nil {
			return err
		}
		return printJSON(items)
	},
}

var viewCmd = &cli.Command{
	Name:  "view",
	Usage: "record that a subject viewed an item",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "subject", Required: true},
		&cli.Int64Flag{Name: "item", Required: true},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		st, err := e.dialStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return e.recency(st, nil).RecordView(ctx, cctx.String("subject"), cctx.Int64("item"))
	},
}

var recentCmd = &cli.Command{
	Name:  "recent",
	Usage: "print a subject's recently viewed items, newest first",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "subject", Required: true},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		st, err := e.dialStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := e.recency(st, nil).Recent(ctx, cctx.String("subject"))
		if err != nil {
			return err
		}
		return printJSON(ids)
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(b))
	return err
}
