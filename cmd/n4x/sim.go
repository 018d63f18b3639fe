package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/planner"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/terraform"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
)

func parseID(s, what string) (world.ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, s)
	}
	return world.ID(n), nil
}

func (a *app) planCmd() *cobra.Command {
	opts := planner.DefaultOptions()
	var ordersPath string
	var noPredict, noRefuel bool

	cmd := &cobra.Command{
		Use:   "plan <ship-id>",
		Short: "Simulate a ship's order queue",
		Long: `Plans the ship's queued orders (or the orders in --orders) and prints the
ETA, fuel and feasibility of every step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shipID, err := parseID(args[0], "ship id")
			if err != nil {
				return err
			}
			snap, err := a.snapshot()
			if err != nil {
				return err
			}
			cfg, err := a.tuning()
			if err != nil {
				return err
			}
			opts.PredictOrbits = !noPredict
			opts.SimulateRefuel = !noRefuel

			var plan planner.OrderPlan
			if ordersPath != "" {
				raw, err := os.ReadFile(ordersPath)
				if err != nil {
					return err
				}
				var q world.Queue
				if err := json.Unmarshal(raw, &q); err != nil {
					return fmt.Errorf("orders %s: %w", ordersPath, err)
				}
				plan = planner.Plan(snap.World, cfg, shipID, q, opts)
			} else {
				plan = planner.PlanShip(snap.World, cfg, shipID, opts)
			}

			out := cmd.OutOrStdout()
			if a.asJSON() {
				return printJSON(out, plan)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tORDER\tETA(d)\tFUEL\tOK\tNOTE")
			for i, s := range plan.Steps {
				fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.1f\t%v\t%s\n", i+1, s.Label, s.ETADays, s.FuelAfterTons, s.Feasible, s.Note)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			status := "ok"
			if plan.Truncated {
				status = "truncated: " + plan.TruncatedReason
			} else if !plan.OK {
				status = "infeasible"
			}
			fmt.Fprintf(out, "total %.2f days, fuel %.1f -> %.1f t (%s)\n", plan.TotalETADays, plan.StartFuelTons, plan.EndFuelTons, status)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&ordersPath, "orders", "", "JSON file with an order list to plan instead of the ship's queue")
	f.BoolVar(&noPredict, "no-predict", false, "aim at cached body positions instead of predicted ones")
	f.BoolVar(&noRefuel, "no-refuel", false, "do not top up at friendly colonies")
	f.IntVar(&opts.MaxOrders, "max-orders", planner.DefaultMaxOrders, "maximum orders to simulate")
	return cmd
}

func (a *app) terraformCmd() *cobra.Command {
	var opts terraform.Options
	cmd := &cobra.Command{
		Use:   "terraform <body-id>",
		Short: "Forecast when a body reaches its terraforming targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bodyID, err := parseID(args[0], "body id")
			if err != nil {
				return err
			}
			snap, err := a.snapshot()
			if err != nil {
				return err
			}
			cfg, err := a.tuning()
			if err != nil {
				return err
			}
			if _, ok := snap.World.Bodies[bodyID]; !ok {
				return fmt.Errorf("unknown body %d", bodyID)
			}
			sched := terraform.Forecast(snap.World, cfg, bodyID, opts)

			out := cmd.OutOrStdout()
			if a.asJSON() {
				return printJSON(out, sched)
			}
			switch {
			case !sched.HasTarget:
				fmt.Fprintf(out, "body %d has no terraforming target\n", bodyID)
			case sched.Complete:
				fmt.Fprintf(out, "body %d complete in %d days\n", bodyID, sched.DaysToComplete)
			case sched.Stalled:
				fmt.Fprintf(out, "body %d stalled: %s\n", bodyID, sched.StallReason)
			default:
				fmt.Fprintf(out, "body %d not complete: %s\n", bodyID, sched.TruncatedReason)
			}
			fmt.Fprintf(out, "temp %.1f -> %.1f K (target %.1f)\n", sched.StartTempK, sched.EndTempK, sched.TargetTempK)
			fmt.Fprintf(out, "atm  %.3f -> %.3f (target %.3f)\n", sched.StartAtm, sched.EndAtm, sched.TargetAtm)
			fmt.Fprintf(out, "o2   %.3f -> %.3f (target %.3f)\n", sched.StartO2Atm, sched.EndO2Atm, sched.TargetO2Atm)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.MaxDays, "max-days", terraform.DefaultMaxDays, "simulation horizon in days")
	cmd.Flags().BoolVar(&opts.IgnoreMineralCosts, "ignore-minerals", false, "assume points cost no minerals")
	return cmd
}
