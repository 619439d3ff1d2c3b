// Package analytics turns raw click records into the summary and the per-URL daily
// series shown on the analytics view.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
)

// SeriesDays is the number of most recent distinct days kept in a series.
const SeriesDays = 7

type analyticsFetcher interface {
	FetchAnalytics(ctx context.Context, shortCode string) (*models.AnalyticsRecord, error)
	FetchAllAnalytics(ctx context.Context) ([]models.AnalyticsRecord, error)
}

type Summary struct {
	TotalClicks   int64 `json:"totalClicks"`
	TotalURLs     int   `json:"totalUrls"`
	AverageClicks int64 `json:"averageClicks"`
}

type Item struct {
	Record models.AnalyticsRecord `json:"record"`
	Series []models.DailyClicks   `json:"series"`
}

type Report struct {
	HasData bool    `json:"hasData"`
	Summary Summary `json:"summary"`
	Items   []Item  `json:"items"`
}

// DailySeries buckets clicks by UTC calendar day, ascending, and keeps only the
// SeriesDays most recent days that have clicks. Days without clicks are not filled in.
func DailySeries(clicks []models.ClickEvent) []models.DailyClicks {
	counts := map[string]int64{}
	for _, click := range clicks {
		counts[click.Timestamp.Day()]++
	}

	days := funk.Keys(counts).([]string)
	sort.Strings(days)
	if len(days) > SeriesDays {
		days = days[len(days)-SeriesDays:]
	}

	result := make([]models.DailyClicks, 0, len(days))
	for _, day := range days {
		result = append(result, models.DailyClicks{Date: day, Count: counts[day]})
	}

	return result
}

// Summarize totals the clicks of all records. The average is rounded to the nearest
// integer and is 0 when there are no records.
func Summarize(records []models.AnalyticsRecord) Summary {
	result := Summary{TotalURLs: len(records)}
	for _, record := range records {
		result.TotalClicks += record.TotalClicks
	}
	if result.TotalURLs > 0 {
		result.AverageClicks = int64(math.Round(float64(result.TotalClicks) / float64(result.TotalURLs)))
	}

	return result
}

type Aggregator struct {
	fetcher analyticsFetcher
}

func New(fetcher analyticsFetcher) *Aggregator {
	return &Aggregator{fetcher: fetcher}
}

// Report fetches the analytics of every URL of the user. A failed fetch is not an
// error for the caller: it is logged and the report is empty.
func (a *Aggregator) Report(ctx context.Context) Report {
	records, err := a.fetcher.FetchAllAnalytics(ctx)
	if err != nil {
		logger.Log.Debugln("analytics fetch error", zap.Error(err))
		records = nil
	}

	result := Report{
		HasData: len(records) > 0,
		Summary: Summarize(records),
		Items:   make([]Item, 0, len(records)),
	}
	for _, record := range records {
		result.Items = append(result.Items, Item{Record: record, Series: DailySeries(record.RecentClicks)})
	}

	return result
}

// Item fetches a single URL's analytics together with its series.
func (a *Aggregator) Item(ctx context.Context, shortCode string) (*Item, error) {
	record, err := a.fetcher.FetchAnalytics(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("in internal/analytics/analytics.go/Item(): error while `fetcher.FetchAnalytics()` calling: %w", err)
	}

	return &Item{Record: *record, Series: DailySeries(record.RecentClicks)}, nil
}
