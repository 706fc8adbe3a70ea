package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stramate/internal/analysis"
	"stramate/internal/config"
	"stramate/internal/store"
)

// AnalyticsService computes per-activity metrics and per-athlete snapshots
type AnalyticsService struct {
	store    *store.DB
	point    analysis.PointConfig
	trend    analysis.TrendConfig
	fallback analysis.Profile
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// NewAnalyticsService creates an analytics service. The configured athlete
// profile is used for athletes without a stored one.
func NewAnalyticsService(db *store.DB, cfg *config.Config, logger *slog.Logger) (*AnalyticsService, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, fmt.Errorf("athlete profile: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Analytics.Workers
	if workers < 1 {
		workers = 1
	}
	return &AnalyticsService{
		store:    db,
		point:    cfg.PointConfig(),
		trend:    cfg.TrendConfig(),
		fallback: profile,
		workers:  workers,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetClock replaces the wall clock, for tests
func (s *AnalyticsService) SetClock(now func() time.Time) {
	s.now = now
}

// Profile returns the stored profile of an athlete, or the configured
// default when none is stored
func (s *AnalyticsService) Profile(athleteID int64) (analysis.Profile, error) {
	a, err := s.store.GetAthlete(athleteID)
	if errors.Is(err, store.ErrAthleteNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		return analysis.Profile{}, fmt.Errorf("loading athlete %d: %w", athleteID, err)
	}
	return profileFromAthlete(a), nil
}

// AnalyzeActivity computes and stores the analytics of one activity.
// Failed computations are stored with their error marker and the error is
// returned as well.
func (s *AnalyticsService) AnalyzeActivity(ctx context.Context, activityID int64) (analysis.ActivityMetrics, error) {
	if err := ctx.Err(); err != nil {
		return analysis.ActivityMetrics{}, err
	}

	a, err := s.store.GetActivity(activityID)
	if err != nil {
		return analysis.ActivityMetrics{}, fmt.Errorf("loading activity %d: %w", activityID, err)
	}

	profile, err := s.Profile(a.AthleteID)
	if err != nil {
		return analysis.ActivityMetrics{}, err
	}

	in := analysis.ActivityInput{
		HasHeartrate: a.HasHeartrate,
		StartDate:    a.StartDate,
	}
	if a.HasHeartrate {
		in.Streams, err = rawStreams(a.Streams)
		if err != nil {
			return analysis.ActivityMetrics{}, fmt.Errorf("activity %d: %w", activityID, err)
		}
		if !in.Streams.HasHeartrate() {
			s.logger.Info("activity has no heart rate readings", "activity_id", activityID)
		}
	}

	metrics, analyzeErr := analysis.Analyze(in, profile, s.point, s.now())

	payload, err := json.Marshal(metrics)
	if err != nil {
		return metrics, fmt.Errorf("encoding analytics of %d: %w", activityID, err)
	}
	if err := s.store.SaveAnalytics(activityID, payload); err != nil {
		return metrics, err
	}

	if analyzeErr != nil {
		s.logger.Warn("activity analysis failed", "activity_id", activityID, "error", analyzeErr)
		return metrics, fmt.Errorf("analyzing activity %d: %w", activityID, analyzeErr)
	}
	s.logger.Debug("activity analyzed",
		"activity_id", activityID,
		"kind", metrics.Kind,
		"hrss", analysis.FormatStressScore(metrics.HRSS))
	return metrics, nil
}

// RecomputeResult summarizes a full re-analysis
type RecomputeResult struct {
	Analyzed int
	Errors   []error
	Snapshot *analysis.Snapshot
}

// RecomputeAll re-analyzes every activity of an athlete on a bounded worker
// pool, then refreshes the snapshot. A failing activity is recorded in the
// result and never stops the others.
func (s *AnalyticsService) RecomputeAll(ctx context.Context, athleteID int64) (*RecomputeResult, error) {
	ids, err := s.store.ListActivityIDs(athleteID)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	result := &RecomputeResult{}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := s.AnalyzeActivity(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, err)
			} else {
				result.Analyzed++
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	s.logger.Info("recomputed activity analytics",
		"athlete_id", athleteID,
		"analyzed", result.Analyzed,
		"failed", len(result.Errors))

	result.Snapshot, err = s.RefreshSnapshot(ctx, athleteID)
	if err != nil {
		return result, err
	}
	return result, nil
}

// RefreshSnapshot recomputes and stores today's snapshot of an athlete.
// Today is taken in the timezone of the athlete's latest activity.
func (s *AnalyticsService) RefreshSnapshot(ctx context.Context, athleteID int64) (*analysis.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tz, err := s.store.LatestTimezone(athleteID)
	if err != nil {
		return nil, fmt.Errorf("latest timezone: %w", err)
	}
	now := s.now()
	since := historyStart(now.In(analysis.ResolveTimezone(tz)), max(s.trend.HistoryDays(), analysis.HeatmapDays))

	history, err := s.store.ListActivitiesSince(athleteID, since)
	if err != nil {
		return nil, fmt.Errorf("loading activity history: %w", err)
	}
	total, err := s.store.CountActivities(athleteID)
	if err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}
	distance, err := s.store.DistanceByType(athleteID)
	if err != nil {
		return nil, fmt.Errorf("summing distance: %w", err)
	}

	loads := make([]analysis.ActivityLoad, 0, len(history))
	volume := analysis.HeatmapInput{
		AllTimeTotal:   total,
		DistanceByType: distance,
		Activities:     make([]analysis.ActivityVolume, 0, len(history)),
	}
	for _, h := range history {
		// Unanalyzed activities still occupy their day with zero stress
		var hrss float64
		if h.HRSS != nil {
			hrss = *h.HRSS
		}
		loads = append(loads, analysis.ActivityLoad{LocalDate: h.StartDateLocal, HRSS: hrss})
		volume.Activities = append(volume.Activities, analysis.ActivityVolume{
			LocalDate:  h.StartDateLocal,
			MovingTime: h.MovingTime,
		})
	}

	snap := analysis.BuildSnapshot(athleteID, tz, loads, volume, now, s.trend)

	fitness, err := json.Marshal(snap.Fitness)
	if err != nil {
		return nil, fmt.Errorf("encoding fitness: %w", err)
	}
	heatmap, err := json.Marshal(snap.Heatmap)
	if err != nil {
		return nil, fmt.Errorf("encoding heatmap: %w", err)
	}

	err = s.store.UpsertSnapshot(&store.Snapshot{
		AthleteID: athleteID,
		Date:      snap.Date,
		Timezone:  snap.Timezone,
		Fitness:   fitness,
		Heatmap:   heatmap,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSyncTime(store.KeyLastSnapshot, now); err != nil {
		return nil, fmt.Errorf("recording snapshot time: %w", err)
	}

	s.logger.Info("snapshot refreshed",
		"athlete_id", athleteID,
		"date", snap.Date,
		"timezone", snap.Timezone,
		"activities", len(history))
	return &snap, nil
}

// LatestSnapshot loads the most recent stored snapshot of an athlete
func (s *AnalyticsService) LatestSnapshot(athleteID int64) (*analysis.Snapshot, time.Time, error) {
	stored, err := s.store.LatestSnapshot(athleteID)
	if err != nil {
		return nil, time.Time{}, err
	}

	snap := &analysis.Snapshot{
		Date:     stored.Date,
		UserID:   stored.AthleteID,
		Timezone: stored.Timezone,
	}
	if err := json.Unmarshal(stored.Fitness, &snap.Fitness); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding fitness of %s: %w", stored.Date, err)
	}
	if err := json.Unmarshal(stored.Heatmap, &snap.Heatmap); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding heatmap of %s: %w", stored.Date, err)
	}
	return snap, stored.ComputedAt, nil
}

// historyStart is the wall-clock midnight days-1 days before local now
func historyStart(localNow time.Time, days int) time.Time {
	y, m, d := localNow.Date()
	return time.Date(y, m, d-(days-1), 0, 0, 0, 0, time.UTC)
}

func profileFromAthlete(a *store.Athlete) analysis.Profile {
	return analysis.Profile{
		Sex:            analysis.ParseSex(a.Sex),
		Birthday:       a.Birthday,
		RestingHR:      a.RestingHR,
		ZoneThresholds: a.ZoneThresholds,
	}
}
