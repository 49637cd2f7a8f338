package main

import (
	"encoding/json"
	"fmt"
	"locker-reservation-service/internal/adapters/repositories"
	"locker-reservation-service/internal/domain"
	"locker-reservation-service/internal/services"
	"log"
	"time"

	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the locker schema if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("Initializing database schema...")
			if err := repositories.InitSchema(cmd.Context(), a.db); err != nil {
				return err
			}
			log.Println("Schema ready.")
			return nil
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load locations, slots and demo parcels from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = a.cfg.SeedPath
			}
			if err := repositories.InitSchema(cmd.Context(), a.db); err != nil {
				return err
			}
			log.Printf("Seeding database from %s...", path)
			if err := repositories.SeedFromJSON(cmd.Context(), a.store, path, time.Now().UTC(), a.geocoder()); err != nil {
				return err
			}
			log.Println("Seeding complete.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "seed file (defaults to SEED_PATH)")
	return cmd
}

func newReclaimCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Expire stale reservations and release their slots once",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.locker.Reclaimer.ReclaimExpired(cmd.Context())
			if n > 0 || err == nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d reservation(s)\n", n)
			}
			return err
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [location-id...]",
		Short: "Print available slots per size for each location",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := args
			if len(ids) == 0 {
				locations, err := a.store.ListLocations(cmd.Context())
				if err != nil {
					return err
				}
				for _, l := range locations {
					ids = append(ids, l.LocationID)
				}
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				counts, err := a.locker.Catalog.Availability(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s", id)
				for _, size := range domain.Sizes {
					_, _ = fmt.Fprintf(out, "\t%s=%d", size, counts[size])
				}
				_, _ = fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newMaintenanceCommand(a *app) *cobra.Command {
	var disable bool
	cmd := &cobra.Command{
		Use:   "maintenance <slot-id>",
		Short: "Take a free slot out of service, or return it with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := a.locker.Catalog.SetMaintenance(cmd.Context(), args[0], !disable)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", slot.SlotID, slot.Status)
			return err
		},
	}
	cmd.Flags().BoolVar(&disable, "off", false, "return the slot to service")
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var (
		in   services.RegisterParcelInput
		size string
	)
	cmd := &cobra.Command{
		Use:   "register-parcel",
		Short: "Register an inbound parcel awaiting a locker reservation",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseSize(size)
			if err != nil {
				return err
			}
			in.Size = parsed
			p, err := a.locker.Registry.RegisterParcel(cmd.Context(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "parcel size (SMALL|MEDIUM|LARGE|XLARGE)")
	cmd.Flags().StringVar(&in.Recipient.Name, "recipient-name", "", "recipient name")
	cmd.Flags().StringVar(&in.Recipient.Email, "recipient-email", "", "recipient email")
	cmd.Flags().StringVar(&in.Recipient.Phone, "recipient-phone", "", "recipient phone")
	cmd.Flags().StringVar(&in.Sender.Name, "sender-name", "", "sender name")
	cmd.Flags().StringVar(&in.Sender.Email, "sender-email", "", "sender email")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}
