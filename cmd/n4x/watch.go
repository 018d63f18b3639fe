package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/persistence/indexdb"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/protocol"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/watchboard"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Evaluate every watchboard pin against the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pins, err := watchboard.LoadPins(a.v.GetString("pins"))
			if err != nil {
				return fmt.Errorf("pins: %w", err)
			}
			snap, err := a.snapshot()
			if err != nil {
				return err
			}
			// No sinks: this run never fires alerts or touches baselines.
			board := watchboard.New(pins, a.logger(cmd), nil)
			results := board.Evaluate(snap.Doc)

			out := cmd.OutOrStdout()
			if a.asJSON() {
				resp := protocol.WatchResponse{Day: snap.Header.Day, Hour: snap.Header.Hour, Results: []protocol.PinResultRecord{}}
				for _, r := range results {
					resp.Results = append(resp.Results, protocol.PinResultRecord{PinID: r.Pin.ID, Label: r.Pin.DisplayLabel(), Result: r.Result})
				}
				return printJSON(out, resp)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tVALUE")
			for _, r := range results {
				val := r.Result.Display
				if !r.Result.OK && r.Result.Error != "" {
					val += " " + r.Result.Error
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Pin.ID, r.Pin.DisplayLabel(), val)
			}
			return tw.Flush()
		},
	}
}

func (a *app) inboxCmd() *cobra.Command {
	var limit int
	var since uint64
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List alerts stored by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := indexdb.OpenSQLite(filepath.Join(a.v.GetString("data"), "index", "n4x.sqlite"))
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer idx.Close()

			alerts, err := idx.ListAlerts(cmd.Context(), limit, since)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON() {
				resp := protocol.AlertsResponse{Alerts: make([]protocol.AlertMsg, 0, len(alerts))}
				for _, al := range alerts {
					resp.Alerts = append(resp.Alerts, protocol.NewAlertMsg(al))
				}
				return printJSON(out, resp)
			}
			for _, al := range alerts {
				fmt.Fprintf(out, "%d  day %d %02d:00  %-5s  %s\n", al.Seq, al.Day, al.Hour, strings.ToUpper(al.Level.String()), al.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum alerts to list")
	cmd.Flags().Uint64Var(&since, "since", 0, "only alerts after this sequence number")
	return cmd
}
