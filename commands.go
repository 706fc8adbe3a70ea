package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"stramate/internal/analysis"
	"stramate/internal/config"
	"stramate/internal/service"
	"stramate/internal/store"
	"stramate/internal/tui"
)

func authCmd() *cobra.Command {
	var logout bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Connect your Strava account",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if logout {
				if err := a.db.DeleteAuth(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stored Strava tokens removed.")
				return nil
			}
			stored, err := a.authenticate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSuccessfully authenticated as athlete %d!\n", stored.AthleteID)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&logout, "logout", false, "forget the stored tokens")
	return cmd
}

func syncCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new activities, analyze them and refresh today's snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logOut := os.Stderr
			if !plain {
				// The sync screen owns the terminal
				f, err := openLogFile()
				if err != nil {
					return err
				}
				defer f.Close()
				logOut = f
			}

			a, err := newApp(newLogger(logOut))
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := a.stravaClient(cmd.Context())
			if err != nil {
				return err
			}
			syncSvc := service.NewSyncService(client, a.db, a.analytics, a.logger)

			if plain {
				result, err := syncSvc.SyncAll(cmd.Context(), nil)
				if err != nil {
					return err
				}
				printSyncResult(cmd, result)
				return nil
			}

			final, err := tea.NewProgram(tui.NewSyncModel(cmd.Context(), syncSvc)).Run()
			if err != nil {
				return fmt.Errorf("running sync screen: %w", err)
			}
			_, syncErr := final.(tui.SyncModel).Result()
			return syncErr
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "log progress instead of showing the sync screen")
	return cmd
}

func openLogFile() (*os.File, error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "stramate.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
}

func printSyncResult(cmd *cobra.Command, r *service.SyncResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fetched %s activities, stored %s, analyzed %s\n",
		humanize.Comma(int64(r.ActivitiesFetched)),
		humanize.Comma(int64(r.ActivitiesStored)),
		humanize.Comma(int64(r.Analyzed)))
	for _, err := range r.Errors {
		fmt.Fprintf(out, "  warning: %v\n", err)
	}
	if r.Snapshot != nil {
		p := analysis.CurrentFitness(r.Snapshot.Fitness)
		fmt.Fprintf(out, "CTL %.1f  ATL %.1f  TSB %.1f  %s\n", p.CTL, p.ATL, p.TSB, analysis.FormDescription(p.TSB))
	}
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <activity-id>",
		Short: "Recompute the heart rate analytics of one activity",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid activity ID %q", args[0])
			}
			activity, err := a.db.GetActivity(id)
			if err != nil {
				return err
			}

			m, err := a.analytics.AnalyzeActivity(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %s)\n", activity.Name, activity.Type, activity.StartDateLocal.Format("Jan 2, 2006 15:04"))
			fmt.Fprintf(out, "Heart rate range: %.0f to %.0f bpm\n", m.MinHR, m.MaxHR)
			fmt.Fprintf(out, "HRSS: %s\n", analysis.FormatStressScore(m.HRSS))
			if !m.HasSeries() {
				return nil
			}
			for i, secs := range analysis.ZoneDistribution(m.HRZones) {
				fmt.Fprintf(out, "  Z%d %s\n", i+1, orDash(analysis.FormatDuration(secs)))
			}
			return nil
		}),
	}
}

func recomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Re-analyze every stored activity and refresh the snapshot",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			id, err := a.athlete()
			if err != nil {
				return err
			}
			result, err := a.analytics.RecomputeAll(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Analyzed %s activities, %d failed\n", humanize.Comma(int64(result.Analyzed)), len(result.Errors))
			for _, err := range result.Errors {
				fmt.Fprintf(out, "  %v\n", err)
			}
			return nil
		}),
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Recompute today's snapshot and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			id, err := a.athlete()
			if err != nil {
				return err
			}
			snap, err := a.analytics.RefreshSnapshot(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}),
	}
}

func reportCmd() *cobra.Command {
	var (
		refresh bool
		days    int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show fitness, fatigue, form and the activity calendar",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			id, err := a.athlete()
			if err != nil {
				return err
			}

			snap, computedAt, err := a.analytics.LatestSnapshot(id)
			if refresh || errors.Is(err, store.ErrSnapshotNotFound) {
				snap, err = a.analytics.RefreshSnapshot(cmd.Context(), id)
				computedAt = time.Now()
			}
			if err != nil {
				return err
			}

			lastSync, err := a.db.GetSyncTime(store.KeyLastSync)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), tui.RenderReport(snap, tui.ReportOptions{
				Units:       tui.NewUnits(a.cfg.Display),
				ChartHeight: a.cfg.Display.ChartHeight,
				ChartDays:   days,
				ComputedAt:  computedAt,
				LastSync:    lastSync,
			}))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute the snapshot first")
	cmd.Flags().IntVar(&days, "days", 90, "days shown in the chart, 0 for the whole window")
	return cmd
}

func athleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "athlete",
		Short: "Show or change the physiological profile",
	}
	cmd.AddCommand(athleteShowCmd(), athleteSetCmd())
	return cmd
}

func athleteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the profile used for heart rate analysis",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			id, err := a.athlete()
			if err != nil {
				return err
			}
			p, err := a.analytics.Profile(id)
			if err != nil {
				return err
			}
			b := analysis.Bounds(p, a.cfg.PointConfig(), time.Now())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Athlete %d\n", id)
			fmt.Fprintf(out, "  Sex:         %s\n", p.Sex)
			if !p.Birthday.IsZero() {
				fmt.Fprintf(out, "  Birthday:    %s (age %d)\n", p.Birthday.Format(time.DateOnly), analysis.Age(p.Birthday, time.Now()))
			}
			fmt.Fprintf(out, "  Heart rate:  %.0f to %.0f bpm\n", b.Min, b.Max)
			cuts := analysis.ZoneCutoffs(b, p.Thresholds(a.cfg.PointConfig()))
			fmt.Fprintf(out, "  Zones:       Z1 ≤%.0f  Z2 ≤%.0f  Z3 ≤%.0f  Z4 ≤%.0f  Z5 above\n", cuts[0], cuts[1], cuts[2], cuts[3])
			return nil
		}),
	}
}

func athleteSetCmd() *cobra.Command {
	var (
		sex         string
		birthday    string
		restingHR   int
		zones       []float64
		noRecompute bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the profile and re-analyze every activity",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			id, err := a.athlete()
			if err != nil {
				return err
			}

			athlete, err := a.db.GetAthlete(id)
			if errors.Is(err, store.ErrAthleteNotFound) {
				athlete, err = newAthlete(a, id)
			}
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("sex") {
				s := strings.ToUpper(strings.TrimSpace(sex))
				if analysis.ParseSex(s) != analysis.Sex(s) {
					return fmt.Errorf("sex must be M, F or O, got %q", sex)
				}
				athlete.Sex = s
			}
			if flags.Changed("birthday") {
				if birthday == "" {
					athlete.Birthday = time.Time{}
				} else if athlete.Birthday, err = time.Parse(time.DateOnly, birthday); err != nil {
					return fmt.Errorf("birthday must be YYYY-MM-DD: %w", err)
				}
			}
			if flags.Changed("resting-hr") {
				if restingHR < 20 || restingHR > 150 {
					return fmt.Errorf("resting heart rate %d is out of range", restingHR)
				}
				athlete.RestingHR = restingHR
			}
			if flags.Changed("zones") {
				if err := validZones(zones); err != nil {
					return err
				}
				copy(athlete.ZoneThresholds[:], zones)
			}

			if err := a.db.SaveAthlete(athlete); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Profile saved.")
			if noRecompute {
				return nil
			}

			result, err := a.analytics.RecomputeAll(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Re-analyzed %s activities, %d failed\n", humanize.Comma(int64(result.Analyzed)), len(result.Errors))
			return nil
		}),
	}

	cmd.Flags().StringVar(&sex, "sex", "", "M, F or O")
	cmd.Flags().StringVar(&birthday, "birthday", "", "YYYY-MM-DD, empty to clear")
	cmd.Flags().IntVar(&restingHR, "resting-hr", 0, "resting heart rate in bpm")
	cmd.Flags().Float64SliceVar(&zones, "zones", nil, "four increasing zone thresholds as fractions of heart rate reserve")
	cmd.Flags().BoolVar(&noRecompute, "no-recompute", false, "save without re-analyzing activities")
	return cmd
}

// newAthlete starts a profile from the configured defaults
func newAthlete(a *app, id int64) (*store.Athlete, error) {
	p, err := a.analytics.Profile(id)
	if err != nil {
		return nil, err
	}
	return &store.Athlete{
		ID:             id,
		Sex:            string(p.Sex),
		Birthday:       p.Birthday,
		RestingHR:      p.RestingHR,
		ZoneThresholds: p.ZoneThresholds,
	}, nil
}

func validZones(zones []float64) error {
	if len(zones) != 4 {
		return fmt.Errorf("expected 4 zone thresholds, got %d", len(zones))
	}
	for i, z := range zones {
		if z <= 0 || z >= 1 || (i > 0 && z <= zones[i-1]) {
			return fmt.Errorf("zone thresholds must increase within (0, 1): %v", zones)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
