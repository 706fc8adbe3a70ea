package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stramate/internal/analysis"
	"stramate/internal/store"
	"stramate/internal/strava"
)

// ActivitySource is the part of the Strava API the sync needs
type ActivitySource interface {
	GetAthlete(ctx context.Context) (*strava.AthleteProfile, error)
	GetAllActivities(ctx context.Context, after time.Time, onProgress func(fetched int)) ([]strava.Activity, error)
	GetActivity(ctx context.Context, activityID int64) (*strava.Activity, json.RawMessage, error)
	GetActivityStreams(ctx context.Context, activityID int64) (strava.Streams, json.RawMessage, error)
}

// Sync phases
const (
	PhaseAthlete    = "athlete"
	PhaseActivities = "activities"
	PhaseStreams    = "streams"
	PhaseAnalytics  = "analytics"
	PhaseSnapshot   = "snapshot"
)

// SyncService imports new activities from Strava, analyzes them and
// refreshes the athlete's snapshot
type SyncService struct {
	client    ActivitySource
	store     *store.DB
	analytics *AnalyticsService
	logger    *slog.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(client ActivitySource, db *store.DB, analytics *AnalyticsService, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		client:    client,
		store:     db,
		analytics: analytics,
		logger:    logger,
	}
}

// RateLimitStatus returns the remaining API requests when the source tracks
// them, -1 otherwise
func (s *SyncService) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	if rl, ok := s.client.(interface{ RateLimitStatus() (int, int) }); ok {
		return rl.RateLimitStatus()
	}
	return -1, -1
}

// SyncProgress reports progress during sync
type SyncProgress struct {
	Phase           string
	Total           int
	Completed       int
	CurrentActivity string
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	AthleteID         int64
	ActivitiesFetched int
	ActivitiesStored  int
	StreamsFetched    int
	Analyzed          int
	Snapshot          *analysis.Snapshot
	Errors            []error
}

// SyncAll imports activities started after the newest stored one, then
// analyzes them and refreshes today's snapshot. Per-activity failures are
// collected in the result.
func (s *SyncService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}
	report := func(p SyncProgress) {
		if progress == nil {
			return
		}
		select {
		case progress <- p:
		case <-ctx.Done():
		}
	}

	result := &SyncResult{}

	report(SyncProgress{Phase: PhaseAthlete})
	athleteID, err := s.syncAthlete(ctx)
	if err != nil {
		return result, fmt.Errorf("syncing athlete: %w", err)
	}
	result.AthleteID = athleteID

	imported, err := s.syncActivities(ctx, athleteID, report, result)
	if err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}

	complete := make([]strava.Activity, 0, len(imported))
	for i, a := range imported {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		report(SyncProgress{Phase: PhaseStreams, Total: len(imported), Completed: i, CurrentActivity: a.Name})
		if err := s.syncPayloads(ctx, a); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if a.HasHeartrate {
			result.StreamsFetched++
		}
		complete = append(complete, a)
	}

	// Activities missing their payloads are analyzed on the next recompute
	for i, a := range complete {
		report(SyncProgress{Phase: PhaseAnalytics, Total: len(complete), Completed: i, CurrentActivity: a.Name})
		if _, err := s.analytics.AnalyzeActivity(ctx, a.ID); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Analyzed++
	}

	report(SyncProgress{Phase: PhaseSnapshot})
	result.Snapshot, err = s.analytics.RefreshSnapshot(ctx, athleteID)
	if err != nil {
		return result, fmt.Errorf("refreshing snapshot: %w", err)
	}

	if err := s.store.SetSyncTime(store.KeyLastSync, time.Now()); err != nil {
		return result, fmt.Errorf("recording sync time: %w", err)
	}

	s.logger.Info("sync finished",
		"athlete_id", athleteID,
		"fetched", result.ActivitiesFetched,
		"stored", result.ActivitiesStored,
		"analyzed", result.Analyzed,
		"errors", len(result.Errors))
	return result, nil
}

// syncAthlete creates the athlete profile on first sync, filling the
// configured defaults with what Strava knows
func (s *SyncService) syncAthlete(ctx context.Context) (int64, error) {
	remote, err := s.client.GetAthlete(ctx)
	if err != nil {
		return 0, err
	}

	stored, err := s.store.GetAthlete(remote.ID)
	switch {
	case err == nil:
		stored.Firstname, stored.Lastname = remote.Firstname, remote.Lastname
		return remote.ID, s.store.SaveAthlete(stored)
	case !errors.Is(err, store.ErrAthleteNotFound):
		return 0, err
	}

	def := s.analytics.fallback
	sex := string(def.Sex)
	if remote.Sex != "" {
		sex = string(analysis.ParseSex(remote.Sex))
	}
	s.logger.Info("new athlete", "athlete_id", remote.ID, "sex", sex)
	return remote.ID, s.store.SaveAthlete(&store.Athlete{
		ID:             remote.ID,
		Firstname:      remote.Firstname,
		Lastname:       remote.Lastname,
		Sex:            sex,
		Birthday:       def.Birthday,
		RestingHR:      def.RestingHR,
		ZoneThresholds: def.ZoneThresholds,
	})
}

func (s *SyncService) syncActivities(ctx context.Context, athleteID int64, report func(SyncProgress), result *SyncResult) ([]strava.Activity, error) {
	after, err := s.store.LatestStartDate(athleteID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetching activities", "after", after)

	report(SyncProgress{Phase: PhaseActivities})
	activities, err := s.client.GetAllActivities(ctx, after, func(fetched int) {
		report(SyncProgress{Phase: PhaseActivities, Completed: fetched})
	})
	result.ActivitiesFetched = len(activities)
	if err != nil {
		return nil, err
	}

	imported := make([]strava.Activity, 0, len(activities))
	for _, a := range activities {
		if a.Athlete.ID == 0 {
			a.Athlete.ID = athleteID
		}
		if err := s.store.UpsertActivity(convertActivity(a)); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
			continue
		}
		imported = append(imported, a)
	}
	result.ActivitiesStored = len(imported)
	return imported, nil
}

// syncPayloads stores the detail and, with heart rate, the streams
func (s *SyncService) syncPayloads(ctx context.Context, a strava.Activity) error {
	_, detail, err := s.client.GetActivity(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("activity %d (%s): %w", a.ID, a.Name, err)
	}
	if err := s.store.SaveDetail(a.ID, detail); err != nil {
		return err
	}

	if !a.HasHeartrate {
		return nil
	}
	streams, raw, err := s.client.GetActivityStreams(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("activity %d (%s): %w", a.ID, a.Name, err)
	}
	s.logger.Debug("streams fetched", "activity_id", a.ID, "samples", streams.Len(), "keys", streams.Keys())
	return s.store.SaveStreams(a.ID, raw)
}
