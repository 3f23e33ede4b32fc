// Package diary keeps each user's profile and per-day food entries in the
// storage adapter.
package diary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photocal/internal/models"
	"photocal/internal/nutrition"
	"photocal/internal/storage"
	"photocal/pkg/logger"
)

const (
	ProfileKey     = "nutrition_user_profile"
	diaryKeyPrefix = "nutrition_food_diary_"
)

// ErrNotPersisted is returned when a change was valid but the backend did not
// accept it.
var ErrNotPersisted = errors.New("diary: change was not persisted")

// DayKey returns the storage key of the entries for date (YYYY-MM-DD).
func DayKey(date string) string {
	return diaryKeyPrefix + date
}

// OwnerKey scopes records to a Telegram user.
func OwnerKey(telegramID int64) string {
	return fmt.Sprintf("tg:%d", telegramID)
}

// Day is the derived view of one calendar day.
type Day struct {
	Date     string              `json:"date"`
	Entries  []models.FoodEntry  `json:"entries"`
	Totals   models.Nutrients    `json:"totals"`
	Targets  nutrition.Targets   `json:"targets"`
	Progress nutrition.Progress  `json:"progress"`
	Profile  *models.UserProfile `json:"profile,omitempty"`
}

type Repository struct {
	adapter  *storage.Adapter
	archiver Archiver
	logger   *logger.Logger
	now      func() time.Time
}

// New builds a repository. archiver may be nil, in which case ending a day
// only clears it.
func New(adapter *storage.Adapter, archiver Archiver, l *logger.Logger) *Repository {
	return &Repository{
		adapter:  adapter,
		archiver: archiver,
		logger:   l.Named("diary"),
		now:      time.Now,
	}
}

// Today returns the date key of the current local day.
func (r *Repository) Today() string {
	return models.DateKey(r.now())
}

func (r *Repository) scoped(owner string) *storage.Adapter {
	return r.adapter.Scoped(owner)
}

// Profile returns the stored profile, or nil when none was saved.
func (r *Repository) Profile(ctx context.Context, owner string) *models.UserProfile {
	return storage.Load[*models.UserProfile](ctx, r.scoped(owner), ProfileKey, nil)
}

// SaveProfile validates p and replaces the stored profile with it.
func (r *Repository) SaveProfile(ctx context.Context, owner string, p models.UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !r.scoped(owner).Save(ctx, ProfileKey, p) {
		return ErrNotPersisted
	}
	r.logger.Infow("Profile saved", "owner", owner, "goal", p.Goal)
	return nil
}

// Entries returns the entries of date in insertion order. Stored entries that
// no longer validate are dropped.
func (r *Repository) Entries(ctx context.Context, owner, date string) []models.FoodEntry {
	stored := storage.Load[[]models.FoodEntry](ctx, r.scoped(owner), DayKey(date), nil)
	return r.valid(owner, date, stored)
}

// storedEntries is Entries for paths that write the day back. A backend read
// failure is returned as ErrNotPersisted instead of an empty day.
func (r *Repository) storedEntries(ctx context.Context, owner, date string) ([]models.FoodEntry, error) {
	stored, _, err := storage.Get[[]models.FoodEntry](ctx, r.scoped(owner), DayKey(date))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNotPersisted, date, err)
	}
	return r.valid(owner, date, stored), nil
}

func (r *Repository) valid(owner, date string, stored []models.FoodEntry) []models.FoodEntry {
	entries := make([]models.FoodEntry, 0, len(stored))
	for _, e := range stored {
		if err := e.Validate(); err != nil {
			r.logger.Warnw("Dropping invalid entry", "owner", owner, "date", date, "id", e.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// AddEntry assigns an id and timestamp when missing, validates the entry and
// appends it to the day it was eaten on. The stored entry is returned even
// when persisting failed, together with ErrNotPersisted. The day is left
// untouched when it could not be read.
func (r *Repository) AddEntry(ctx context.Context, owner string, e models.FoodEntry) (models.FoodEntry, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	if e.ID == 0 {
		e.ID = models.NewEntryID(e.Timestamp)
	}
	if err := e.Validate(); err != nil {
		return models.FoodEntry{}, err
	}

	date := models.DateKey(e.Timestamp)
	entries, err := r.storedEntries(ctx, owner, date)
	if err != nil {
		return e, err
	}
	for _, existing := range entries {
		if existing.ID == e.ID {
			e.ID = maxID(entries) + 1
			break
		}
	}
	entries = append(entries, e)

	if !r.scoped(owner).Save(ctx, DayKey(date), entries) {
		return e, ErrNotPersisted
	}
	r.logger.Infow("Entry added", "owner", owner, "date", date, "id", e.ID, "meal", e.MealType)
	return e, nil
}

func maxID(entries []models.FoodEntry) int64 {
	var m int64
	for _, e := range entries {
		if e.ID > m {
			m = e.ID
		}
	}
	return m
}

// DeleteEntry removes the entry with id from date and reports whether it
// existed.
func (r *Repository) DeleteEntry(ctx context.Context, owner, date string, id int64) (bool, error) {
	entries, err := r.storedEntries(ctx, owner, date)
	if err != nil {
		return false, err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return false, nil
	}

	if !r.scoped(owner).Save(ctx, DayKey(date), kept) {
		return true, ErrNotPersisted
	}
	return true, nil
}

// Day loads the entries of date together with totals and the progress
// against the owner's targets.
func (r *Repository) Day(ctx context.Context, owner, date string) Day {
	profile := r.Profile(ctx, owner)
	entries := r.Entries(ctx, owner, date)
	totals := nutrition.Totals(entries)
	targets := nutrition.Calculate(profile)

	return Day{
		Date:     date,
		Entries:  entries,
		Totals:   totals,
		Targets:  targets,
		Progress: nutrition.ProgressOf(totals, targets),
		Profile:  profile,
	}
}

// EndDay archives the entries of date, when an archiver is configured, and
// then clears the day. Nothing is cleared if archiving fails.
func (r *Repository) EndDay(ctx context.Context, owner, date string) error {
	entries, err := r.storedEntries(ctx, owner, date)
	if err != nil {
		return err
	}

	if r.archiver != nil && len(entries) > 0 {
		rec := Archive{
			Owner:      owner,
			Date:       date,
			ArchivedAt: r.now().UTC(),
			Entries:    entries,
			Totals:     nutrition.Totals(entries),
		}
		location, err := r.archiver.Archive(ctx, rec)
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", date, err)
		}
		r.logger.Infow("Day archived", "owner", owner, "date", date, "location", location)
	}

	if !r.scoped(owner).Remove(ctx, DayKey(date)) {
		return ErrNotPersisted
	}
	return nil
}
