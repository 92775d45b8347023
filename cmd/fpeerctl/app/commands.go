package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

const maxColWidth = 40

func newTable() *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = maxColWidth
	t.Wrap = true
	return t
}

func newDriversCommand(opts *ctlOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List drivers with their latest telemetry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			drivers, err := opts.client().Drivers(cmd.Context(), status)
			if err != nil {
				return err
			}
			t := newTable()
			t.AddRow("ID", "NAME", "ACTIVE", "PAUSED", "STATUS", "LATITUDE", "LONGITUDE", "ETA")
			for _, d := range drivers {
				st, lat, lng, eta := "-", "-", "-", "-"
				if loc := d.CurrentLocation; loc != nil {
					st = string(loc.Status)
					lat = strconv.FormatFloat(loc.Latitude, 'f', 5, 64)
					lng = strconv.FormatFloat(loc.Longitude, 'f', 5, 64)
					if loc.ETA != "" {
						eta = loc.ETA
					}
				}
				t.AddRow(d.ID, d.Name, d.IsActive, d.IsPaused, st, lat, lng, eta)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only drivers whose latest telemetry has this status.")
	return cmd
}

func newDeliveriesCommand(opts *ctlOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "List deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deliveries, err := opts.client().Deliveries(cmd.Context(), status)
			if err != nil {
				return err
			}
			t := newTable()
			t.AddRow("ID", "DRIVER", "CUSTOMER", "ADDRESS", "STATUS", "CREATED")
			for _, d := range deliveries {
				t.AddRow(d.ID, d.DriverID, d.CustomerName, d.CustomerAddress, d.Status, d.CreatedAt.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only deliveries in this status.")
	return cmd
}

func newOverviewCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show fleet and delivery counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := opts.client().Overview(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable()
			t.AddRow("CONNECTED:", o.IsConnected)
			t.AddRow("DRIVERS:", fmt.Sprintf("%d total, %d online, %d available, %d paused",
				o.TotalDrivers, o.OnlineDrivers, o.AvailableDrivers, o.PausedDrivers))
			t.AddRow("DELIVERIES:", fmt.Sprintf("%d active, %d pending, %d in progress, %d paused, %d completed, %d cancelled",
				o.ActiveDeliveries, o.PendingDeliveries, o.InProgressDeliveries, o.PausedDeliveries, o.CompletedDeliveries, o.CancelledDeliveries))
			if !o.LastUpdate.IsZero() {
				t.AddRow("LAST UPDATE:", o.LastUpdate.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newDeliverCommand(opts *ctlOptions) *cobra.Command {
	var newDriver string
	cmd := &cobra.Command{
		Use:       "deliver <delivery-id> <action>",
		Short:     "Apply an action to a delivery",
		Args:      cobra.ExactArgs(2),
		ValidArgs: deliveryActionNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.ParseDeliveryAction(args[1]); err != nil {
				return err
			}
			d, err := opts.client().DeliveryAction(cmd.Context(), args[0], args[1], newDriver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivery %s is %s (driver %s)\n", d.ID, d.Status, d.DriverID)
			return nil
		},
	}
	cmd.Flags().StringVar(&newDriver, "new-driver", "", "Target driver of a reassign action.")
	return cmd
}

func deliveryActionNames() []string {
	var out []string
	for _, a := range model.DeliveryActions() {
		out = append(out, string(a))
	}
	return out
}

func newDriverCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "driver <driver-id> <pause|resume>",
		Short: "Pause or resume a driver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.ParseDriverAction(args[1]); err != nil {
				return err
			}
			d, err := opts.client().DriverAction(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			state := "active"
			if d.IsPaused {
				state = "paused"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "driver %s is %s\n", d.ID, state)
			return nil
		},
	}
}

func newLocateCommand(opts *ctlOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <driver-id>",
		Short: "Ask a driver to report its location now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().RequestLocation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "location requested from driver %s\n", args[0])
			return nil
		},
	}
}
