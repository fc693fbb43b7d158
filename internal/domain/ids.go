package domain

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the one timestamp representation used for lastUpdated,
// log lines and progress events: RFC 3339 in UTC without fractional seconds.
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// CampaignKey stringifies a campaign ID for use as a map key.
func CampaignKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseCampaignIDs splits s on whitespace and commas and keeps the positive
// integers, in order. Anything else is dropped.
func ParseCampaignIDs(s string) []int64 {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		ids = append(ids, n)
	}
	return ids
}
