package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/logger"
	"github.com/Alpha162/armoured-candles/pkg/models"
)

const (
	// settingsKey holds the current multi-chart settings document.
	settingsKey = "settings:v2"
	// legacyKey is the single-chart document written by firmware before the
	// multi-viewport rework.
	legacyKey = "settings:v1"
)

// legacySettings is the old single-chart persisted layout, kept only for the
// one-shot migration on first boot after an upgrade.
type legacySettings struct {
	WifiSSID              string             `json:"wifi_ssid"`
	WifiPass              string             `json:"wifi_pass"`
	UIUser                string             `json:"ui_user"`
	UIPass                string             `json:"ui_pass"`
	RefreshMinutes        int                `json:"refresh_minutes"`
	FullRefreshEvery      int                `json:"full_refresh_every"`
	PartialThreshold      float64            `json:"partial_threshold"`
	TimezoneOffsetMinutes int                `json:"timezone_offset_minutes"`
	Chart                 models.ChartConfig `json:"chart"`
}

// Store loads and saves the persisted settings document.
type Store struct {
	kv  KV
	log *logrus.Entry
}

// New wraps a KV backend.
func New(kv KV, log *logrus.Logger) *Store {
	return &Store{kv: kv, log: logger.WithComponent(log, "store")}
}

// Load returns the persisted settings. A legacy single-chart document is
// migrated in place: its chart config is replicated into every slot and the
// multi-chart form is persisted exactly once, so the next load reads the
// migrated document directly. A completely empty store gets factory defaults,
// also persisted.
func (s *Store) Load(ctx context.Context) (models.Settings, error) {
	raw, err := s.kv.Get(ctx, settingsKey)
	if err == nil {
		var settings models.Settings
		if uerr := json.Unmarshal([]byte(raw), &settings); uerr != nil {
			return models.Settings{}, fmt.Errorf("corrupt settings document: %w", uerr)
		}
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	legacyRaw, lerr := s.kv.Get(ctx, legacyKey)
	if lerr == nil {
		return s.migrateLegacy(ctx, legacyRaw)
	}
	if !errors.Is(lerr, ErrNotFound) {
		return models.Settings{}, fmt.Errorf("loading legacy settings: %w", lerr)
	}

	s.log.Info("No persisted settings, writing factory defaults")
	settings := models.DefaultSettings()
	if err := s.Save(ctx, settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

// Save validates and persists the settings document.
func (s *Store) Save(ctx context.Context, settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.kv.Set(ctx, settingsKey, string(raw)); err != nil {
		return fmt.Errorf("persisting settings: %w", err)
	}
	return nil
}

func (s *Store) migrateLegacy(ctx context.Context, raw string) (models.Settings, error) {
	var old legacySettings
	if err := json.Unmarshal([]byte(raw), &old); err != nil {
		return models.Settings{}, fmt.Errorf("corrupt legacy settings document: %w", err)
	}

	settings := models.DefaultSettings()
	settings.WifiSSID = old.WifiSSID
	settings.WifiPass = old.WifiPass
	settings.UIUser = old.UIUser
	settings.UIPass = old.UIPass
	settings.ActiveCharts = 1
	if old.RefreshMinutes > 0 {
		settings.RefreshMinutes = old.RefreshMinutes
	}
	if old.FullRefreshEvery > 0 {
		settings.FullRefreshEvery = old.FullRefreshEvery
	}
	if old.PartialThreshold > 0 {
		settings.PartialThreshold = old.PartialThreshold
	}
	settings.TimezoneOffsetMinutes = old.TimezoneOffsetMinutes
	// the single legacy chart seeds every slot so enabling more charts
	// starts from a sensible config
	for i := range settings.Charts {
		settings.Charts[i] = old.Chart
	}

	if err := s.Save(ctx, settings); err != nil {
		return models.Settings{}, fmt.Errorf("persisting migrated settings: %w", err)
	}
	if err := s.kv.Delete(ctx, legacyKey); err != nil {
		s.log.WithError(err).Warn("Deleting legacy settings key failed")
	}
	s.log.Info("Migrated legacy single-chart settings")
	return settings, nil
}
