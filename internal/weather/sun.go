package weather

import "time"

const (
	defaultSunriseHour = 6
	defaultSunsetHour  = 18
)

// SunTimes is the cached payload written to <date>_now.json. A zero time
// means the value is unknown.
type SunTimes struct {
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Source      string    `json:"source"`
}

// ResolveSun picks sunrise and sunset independently: the freshly fetched
// value when known, else the value cached earlier today, else 06:00 and
// 18:00 local time on now's date.
func ResolveSun(now time.Time, fetched, cached SunTimes) (sunrise, sunset time.Time) {
	sunrise = firstKnown(fetched.Sunrise, cached.Sunrise)
	sunset = firstKnown(fetched.Sunset, cached.Sunset)

	y, m, d := now.Date()
	if sunrise.IsZero() {
		sunrise = time.Date(y, m, d, defaultSunriseHour, 0, 0, 0, now.Location())
	}
	if sunset.IsZero() {
		sunset = time.Date(y, m, d, defaultSunsetHour, 0, 0, 0, now.Location())
	}
	return sunrise, sunset
}

func firstKnown(values ...time.Time) time.Time {
	for _, v := range values {
		if !v.IsZero() {
			return v
		}
	}
	return time.Time{}
}

// sunFromResponse converts the upstream payload into SunTimes, leaving
// fields zero when the upstream omitted them.
func sunFromResponse(resp currentResponse, loc *time.Location) SunTimes {
	var st SunTimes
	if resp.Sys != nil {
		if resp.Sys.Sunrise != nil && *resp.Sys.Sunrise > 0 {
			st.Sunrise = time.Unix(*resp.Sys.Sunrise, 0).In(loc)
		}
		if resp.Sys.Sunset != nil && *resp.Sys.Sunset > 0 {
			st.Sunset = time.Unix(*resp.Sys.Sunset, 0).In(loc)
		}
	}
	st.Source = resp.Name
	return st
}
