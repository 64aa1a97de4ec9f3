package main

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-prayer-queue/internal/app"
	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/services"
	"github.com/tbourn/go-prayer-queue/internal/utils"
)

// nowFunc is the clock for relative timestamps.
var nowFunc = time.Now

func newReseedCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "reseed",
		Short: "Rebuild the queue from the rosters (prayed candidates are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReseed(cmd, application, key)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "idempotency key; a recent run with the same key is replayed")
	return cmd
}

func runReseed(cmd *cobra.Command, a *app.App, key string) error {
	out, err := a.Queue.ReseedOnce(cmd.Context(), key)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if out.Replayed {
		color.New(color.FgYellow).Fprintf(w, "Replayed reseed run %s\n", out.RunID)
	} else {
		color.New(color.FgGreen).Fprintln(w, "Reseed complete")
		renderMaps(cmd, a)
	}
	printReseed(w, out.ReseedResult)
	return nil
}

func newPurgeCmd() *cobra.Command {
	var reseed bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every candidate, prayed ones included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd, application, reseed)
		},
	}
	cmd.Flags().BoolVar(&reseed, "reseed", false, "reseed after purging")
	return cmd
}

func runPurge(cmd *cobra.Command, a *app.App, reseed bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	if !reseed {
		n, err := a.Queue.PurgeAll(ctx)
		if err != nil {
			return err
		}
		color.New(color.FgRed).Fprintf(w, "Purged %d candidates\n", n)
		renderMaps(cmd, a)
		return nil
	}
	n, res, err := a.Queue.PurgeAndReseed(ctx)
	if err != nil {
		return err
	}
	color.New(color.FgRed).Fprintf(w, "Purged %d candidates\n", n)
	printReseed(w, res)
	renderMaps(cmd, a)
	return nil
}

func newListCmd() *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:       "list queued|prayed",
		Short:     "List candidates by status",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(domain.StatusQueued), string(domain.StatusPrayed)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, application, domain.Status(args[0]), country)
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "country code filter")
	return cmd
}

func runList(cmd *cobra.Command, a *app.App, status domain.Status, country string) error {
	ctx := cmd.Context()
	country = strings.ToLower(strings.TrimSpace(country))

	var (
		items []domain.Candidate
		err   error
	)
	if status == domain.StatusPrayed {
		items, err = a.Prayer.ListPrayed(ctx, country)
	} else {
		items, err = a.Prayer.ListQueued(ctx, country)
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	color.New(color.FgCyan).Fprintf(w, "%d %s\n", len(items), status)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Place", "Party", "Country", "Hex", "Since"})
	for _, c := range items {
		table.Append([]string{
			strconv.FormatUint(uint64(c.ID), 10),
			c.PersonName,
			deref(c.PostLabel),
			c.Party,
			c.CountryCode,
			deref(c.HexID),
			utils.FormatPrettyTimestamp(c.StatusTimestamp, nowFunc()),
		})
	}
	table.Render()
	return nil
}

func newStatsCmd() *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print progress, or party counts for one country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, application, country)
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "show prayed counts per party for this country")
	return cmd
}

func runStats(cmd *cobra.Command, a *app.App, country string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	country = strings.ToLower(strings.TrimSpace(country))

	if country != "" {
		parties, err := a.Stats.PartyStatistics(ctx, country)
		if err != nil {
			return err
		}
		color.New(color.FgYellow).Fprintf(w, "Prayed per party in %s\n", country)
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Party", "Colour", "Prayed"})
		for _, p := range parties {
			table.Append([]string{p.ShortName, p.Color, strconv.FormatInt(p.Count, 10)})
		}
		table.Render()
		return nil
	}

	sum, err := a.Stats.Summary(ctx)
	if err != nil {
		return err
	}
	color.New(color.FgYellow).Fprintln(w, "Progress")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Country", "Queued", "Prayed", "Target"})
	for _, c := range sum.Countries {
		table.Append([]string{
			strings.TrimSpace(c.Flag + " " + c.Name),
			strconv.FormatInt(c.Queued, 10),
			strconv.FormatInt(c.Prayed, 10),
			strconv.Itoa(c.Target),
		})
	}
	table.SetFooter([]string{"Total", strconv.FormatInt(sum.Queued, 10), strconv.FormatInt(sum.Prayed, 10), "remaining " + strconv.FormatInt(sum.Remaining, 10)})
	table.Render()
	return nil
}

func printReseed(w io.Writer, res services.ReseedResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Inserted", "Skipped", "Already prayed", "Missing name", "Removed", "No hex"})
	table.Append([]string{
		strconv.Itoa(res.Inserted),
		strconv.Itoa(res.Skipped),
		strconv.Itoa(res.AlreadyPrayed),
		strconv.Itoa(res.MissingName),
		strconv.Itoa(res.Removed),
		strconv.Itoa(res.HexUnassigned),
	})
	table.Render()
}

// renderMaps redraws every map after a rebuild; failures are reported but
// do not fail the command.
func renderMaps(cmd *cobra.Command, a *app.App) {
	if err := a.RenderAll(cmd.Context()); err != nil {
		color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "map render:", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
