package models

import "fmt"

// MaxCharts is the number of chart slots the device can display.
const MaxCharts = 4

// Settings is the user-facing persisted configuration: global device settings
// plus one ChartConfig per slot. Boot-time infrastructure config (listen
// address, store location, panel wiring) lives in pkg/config instead.
type Settings struct {
	WifiSSID string `json:"wifi_ssid"`
	WifiPass string `json:"wifi_pass"`
	UIUser   string `json:"ui_user"`
	UIPass   string `json:"ui_pass"`

	// ActiveCharts is how many chart slots are rendered, 1-4.
	ActiveCharts int `json:"active_charts"`
	// RefreshMinutes is the periodic cycle interval.
	RefreshMinutes int `json:"refresh_minutes"`
	// FullRefreshEvery forces a full panel refresh after this many partial
	// cycles, bounding cumulative ghosting.
	FullRefreshEvery int `json:"full_refresh_every"`
	// PartialThreshold is the changed-pixel fraction above which a full
	// refresh is chosen even mid-cadence.
	PartialThreshold float64 `json:"partial_threshold"`
	// TimezoneOffsetMinutes shifts rendered timestamps from UTC.
	TimezoneOffsetMinutes int `json:"timezone_offset_minutes"`

	Charts [MaxCharts]ChartConfig `json:"charts"`
}

// DefaultChartConfig is the factory config for an unconfigured chart slot.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Exchange:  ExchangeBinance,
		Coin:      "BTC",
		Quote:     "USDT",
		Interval:  "1h",
		AutoCount: true,
		EMAFast:   9,
		EMASlow:   21,
		RSIPeriod: 14,
	}
}

// DefaultSettings returns the factory settings used on first boot.
func DefaultSettings() Settings {
	s := Settings{
		ActiveCharts:     1,
		RefreshMinutes:   5,
		FullRefreshEvery: 10,
		PartialThreshold: 0.35,
	}
	for i := range s.Charts {
		s.Charts[i] = DefaultChartConfig()
	}
	return s
}

// Validate checks every field, including each chart slot. Invalid settings
// are rejected wholesale; the previous persisted settings stay in effect.
func (s *Settings) Validate() error {
	if s.ActiveCharts < 1 || s.ActiveCharts > MaxCharts {
		return &ValidationError{Field: "active_charts", Code: "invalid_chart_count", Msg: fmt.Sprintf("active charts %d outside [1, %d]", s.ActiveCharts, MaxCharts)}
	}
	if s.RefreshMinutes < 1 || s.RefreshMinutes > 24*60 {
		return &ValidationError{Field: "refresh_minutes", Code: "invalid_refresh_interval", Msg: "refresh interval outside [1m, 24h]"}
	}
	if s.FullRefreshEvery < 1 || s.FullRefreshEvery > 1000 {
		return &ValidationError{Field: "full_refresh_every", Code: "invalid_cadence", Msg: "full refresh cadence outside [1, 1000]"}
	}
	if s.PartialThreshold < 0 || s.PartialThreshold > 1 {
		return &ValidationError{Field: "partial_threshold", Code: "invalid_threshold", Msg: "partial threshold outside [0, 1]"}
	}
	if s.TimezoneOffsetMinutes < -14*60 || s.TimezoneOffsetMinutes > 14*60 {
		return &ValidationError{Field: "timezone_offset_minutes", Code: "invalid_timezone", Msg: "timezone offset outside [-14h, +14h]"}
	}
	for i := range s.Charts {
		if err := s.Charts[i].Validate(); err != nil {
			if verr, ok := err.(*ValidationError); ok {
				return &ValidationError{
					Field: fmt.Sprintf("charts[%d].%s", i, verr.Field),
					Code:  verr.Code,
					Msg:   verr.Msg,
				}
			}
			return err
		}
	}
	return nil
}
