package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hako/durafmt"
)

var ErrNoData = errors.New("no forecast data available")

const (
	fetchTimeout = 10 * time.Second
	defaultTTL   = time.Hour
	defaultDays  = 5
	maxDays      = 16
)

// Options parameterise one fetch-and-cache instance.
type Options struct {
	Endpoint string
	APIKey   string
	Lat      float64
	Lon      float64
	Units    string
	DataDir  string
	TTL      time.Duration
	Days     int
}

// DaylightBounds gives the local hours of sunrise and sunset.
type DaylightBounds struct {
	SunriseHour int `json:"sunrise_hour"`
	SunsetHour  int `json:"sunset_hour"`
}

// DayView is a cached Day as served; the first day also carries sun times.
type DayView struct {
	Day
	Sunrise        *time.Time      `json:"sunrise,omitempty"`
	Sunset         *time.Time      `json:"sunset,omitempty"`
	DaylightBounds *DaylightBounds `json:"daylight_bounds,omitempty"`
}

type Report struct {
	Days     []DayView `json:"days"`
	CacheAge string    `json:"cache_age,omitempty"`
}

// Service fetches OpenWeatherMap data on demand and keeps it on disk so
// most requests are served without an upstream call.
type Service struct {
	opts   Options
	client *http.Client
	cache  diskCache
	logger *slog.Logger

	// mu serialises refreshes so concurrent stale reads fetch once.
	mu  sync.Mutex
	now func() time.Time
}

func NewService(opts Options, client *http.Client, logger *slog.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Days <= 0 {
		opts.Days = defaultDays
	}
	return &Service{
		opts:   opts,
		client: client,
		cache:  diskCache{dir: opts.DataDir, ttl: opts.TTL},
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) today() string {
	return s.now().Format(time.DateOnly)
}

// Refresh fetches the forecast and sun times unconditionally.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ferr := s.refreshForecast(ctx)
	serr := s.refreshSun(ctx)
	return errors.Join(ferr, serr)
}

// Forecast returns up to days cached days starting today, refreshing stale
// cache files first. Upstream failures are logged and the cache is served
// as is.
func (s *Service) Forecast(ctx context.Context, days int) (Report, error) {
	if days <= 0 {
		days = s.opts.Days
	}
	if days > maxDays {
		days = maxDays
	}

	s.mu.Lock()
	now := s.now()
	today := s.today()
	if !s.cache.fresh(s.cache.forecastPath(today), now) {
		if err := s.refreshForecast(ctx); err != nil {
			s.logger.Warn("forecast refresh failed", "error", err)
		}
	}
	if !s.cache.fresh(s.cache.sunPath(today), now) {
		if err := s.refreshSun(ctx); err != nil {
			s.logger.Warn("sun times refresh failed", "error", err)
		}
	}
	sun := s.cache.readSun(today)
	s.mu.Unlock()

	report := Report{Days: make([]DayView, 0, days)}
	start := s.now()
	for offset := 0; offset < days; offset++ {
		date := start.AddDate(0, 0, offset).Format(time.DateOnly)
		day, ok, err := s.cache.readDay(date)
		if err != nil {
			s.logger.Warn("cached day unreadable", "date", date, "error", err)
			continue
		}
		if !ok {
			continue
		}

		view := DayView{Day: day}
		if offset == 0 {
			applySun(&view, sun)
		}
		report.Days = append(report.Days, view)
	}

	if age, ok := s.cache.age(s.cache.forecastPath(today), s.now()); ok {
		report.CacheAge = durafmt.Parse(age.Round(time.Second)).LimitFirstN(2).String()
	}

	if len(report.Days) == 0 {
		return report, ErrNoData
	}
	return report, nil
}

func applySun(view *DayView, sun SunTimes) {
	if !sun.Sunrise.IsZero() {
		sunrise := sun.Sunrise
		view.Sunrise = &sunrise
	}
	if !sun.Sunset.IsZero() {
		sunset := sun.Sunset
		view.Sunset = &sunset
	}
	if view.Sunrise != nil && view.Sunset != nil {
		view.DaylightBounds = &DaylightBounds{
			SunriseHour: view.Sunrise.Hour(),
			SunsetHour:  view.Sunset.Hour(),
		}
	}
}

// refreshForecast writes one file per forecast date. Callers hold mu.
func (s *Service) refreshForecast(ctx context.Context) error {
	resp, err := s.fetchForecast(ctx)
	if err != nil {
		return err
	}

	days := aggregateDays(resp.List, s.now())
	if len(days) == 0 {
		return fmt.Errorf("forecast response had no usable entries")
	}
	for _, day := range days {
		if err := s.cache.writeJSON(s.cache.forecastPath(day.Date), day); err != nil {
			return fmt.Errorf("cache forecast %s: %w", day.Date, err)
		}
	}
	s.logger.Debug("forecast cached", "days", len(days))
	return nil
}

// refreshSun fetches sun times and writes today's resolved values. A failed
// or malformed fetch falls back through ResolveSun rather than failing; only
// a cache write error is returned. Callers hold mu.
func (s *Service) refreshSun(ctx context.Context) error {
	now := s.now()
	today := s.today()

	var fetched SunTimes
	resp, err := s.fetchCurrent(ctx)
	if err != nil {
		s.logger.Warn("current weather fetch failed", "error", err)
	} else {
		fetched = sunFromResponse(resp, now.Location())
	}

	cached := s.cache.readSun(today)
	sunrise, sunset := ResolveSun(now, fetched, cached)

	source := fetched.Source
	if source == "" {
		source = sourceName
	}
	return s.cache.writeJSON(s.cache.sunPath(today), SunTimes{
		Sunrise:     sunrise,
		Sunset:      sunset,
		RetrievedAt: now,
		Source:      source,
	})
}
