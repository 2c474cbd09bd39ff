package models

import "time"

type Period struct {
	Key   string `json:"key"`
	Days  int    `json:"days,omitempty"`
	Label string `json:"label"`
}

const (
	Period30d  = "30d"
	Period90d  = "90d"
	Period180d = "180d"
	Period1y   = "1y"
	PeriodYtd  = "ytd"
)

var Periods = []Period{
	{Key: Period30d, Days: 30, Label: "30 jours"},
	{Key: Period90d, Days: 90, Label: "90 jours"},
	{Key: Period180d, Days: 180, Label: "6 mois"},
	{Key: Period1y, Days: 365, Label: "1 an"},
	{Key: PeriodYtd, Label: "Depuis début année"},
}

func LookupPeriod(key string) (Period, bool) {
	for _, p := range Periods {
		if p.Key == key {
			return p, true
		}
	}
	return Period{}, false
}

// PeriodLabels is the key -> label view served by the /periods route.
func PeriodLabels() map[string]string {
	res := make(map[string]string, len(Periods))
	for _, p := range Periods {
		res[p.Key] = p.Label
	}
	return res
}

// Start is the first calendar day (UTC midnight) of the window ending at now.
// Year to date starts on January 1st.
func (p Period) Start(now time.Time) time.Time {
	now = now.UTC()
	if p.Key == PeriodYtd {
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -p.Days)
}
