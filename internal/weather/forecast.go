package weather

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const sourceName = "openweathermap"

// Hour is one 3-hourly forecast sample.
type Hour struct {
	Time        string  `json:"time"`
	Temp        float64 `json:"temp"`
	Description string  `json:"description"`
}

// Day is the cached daily summary written to <date>.json.
type Day struct {
	Date         string    `json:"date"`
	Weekday      string    `json:"weekday"`
	TempMin      float64   `json:"temp_min"`
	TempMax      float64   `json:"temp_max"`
	Summary      string    `json:"summary"`
	Descriptions []string  `json:"weather_descriptions"`
	Temps        []float64 `json:"temps"`
	Hours        []Hour    `json:"hours"`
	Source       string    `json:"source"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// aggregateDays groups forecast samples by calendar date, in the order the
// dates first appear. Samples missing a timestamp, temperature or
// description are skipped.
func aggregateDays(entries []forecastEntry, retrievedAt time.Time) []Day {
	var order []string
	byDate := make(map[string]*Day)

	for _, e := range entries {
		date, _, _ := strings.Cut(strings.TrimSpace(e.DtTxt), " ")
		if date == "" || e.Main == nil || e.Main.Temp == nil || len(e.Weather) == 0 {
			continue
		}
		parsed, err := time.Parse(time.DateOnly, date)
		if err != nil {
			continue
		}

		day, ok := byDate[date]
		if !ok {
			day = &Day{
				Date:        date,
				Weekday:     parsed.Format("Mon"),
				Source:      sourceName,
				RetrievedAt: retrievedAt,
			}
			byDate[date] = day
			order = append(order, date)
		}
		temp := *e.Main.Temp
		desc := e.Weather[0].Description
		day.Temps = append(day.Temps, temp)
		day.Descriptions = append(day.Descriptions, desc)
		day.Hours = append(day.Hours, Hour{Time: e.DtTxt, Temp: temp, Description: desc})
	}

	days := make([]Day, 0, len(order))
	for _, date := range order {
		day := byDate[date]
		minT, maxT := day.Temps[0], day.Temps[0]
		for _, t := range day.Temps[1:] {
			minT = math.Min(minT, t)
			maxT = math.Max(maxT, t)
		}
		day.TempMin = round1(minT)
		day.TempMax = round1(maxT)
		day.Summary = capitalize(mostCommon(day.Descriptions))
		days = append(days, *day)
	}
	return days
}

// mostCommon returns the most frequent value; ties go to the value seen
// first.
func mostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
