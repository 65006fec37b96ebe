package mailstatus

import (
	"fmt"
	"time"

	"dashstat/internal/mailbox"
)

// TimeLayout is ISO-8601 with microseconds and a numeric offset.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

const (
	errorText      = "Email monitor error"
	quietSyncTitle = "mbsync completed without stderr"
)

// Entry is one row of the dashboard list widget.
type Entry struct {
	Date  string `json:"date"`
	Value Value  `json:"value"`
}

type Value struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// BuildPayload renders mailbox statuses, preceded by the last sync outcome
// when there is one.
func BuildPayload(now time.Time, statuses []mailbox.Status, lastSync *SyncResult) []Entry {
	timestamp := now.UTC().Format(TimeLayout)

	entries := make([]Entry, 0, len(statuses)+1)
	if lastSync != nil {
		entries = append(entries, syncEntry(*lastSync))
	}
	for _, mb := range statuses {
		title := fmt.Sprintf("Mailbox '%s' unread count at %s", mb.Name, timestamp)
		if mb.Latest != "" {
			title += "; latest: " + mb.Latest
		}
		entries = append(entries, Entry{
			Date: timestamp,
			Value: Value{
				Text:  fmt.Sprintf("%s: %d unread", mb.Name, mb.Unread),
				Title: title,
			},
		})
	}
	return entries
}

func syncEntry(res SyncResult) Entry {
	title := res.Stderr
	if title == "" {
		title = quietSyncTitle
	}
	return Entry{
		Date: res.Timestamp.UTC().Format(TimeLayout),
		Value: Value{
			Text:  fmt.Sprintf("Last sync: exit %d in %.1fs", res.ExitCode, res.Duration),
			Title: title,
		},
	}
}

// ErrorPayload is the single-entry payload published when a refresh fails.
func ErrorPayload(now time.Time, err error) []Entry {
	return []Entry{{
		Date: now.UTC().Format(TimeLayout),
		Value: Value{
			Text:  errorText,
			Title: err.Error(),
		},
	}}
}
