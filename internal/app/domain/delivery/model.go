package delivery

import (
	"strings"
	"time"
)

// DaysRule controls on which weekdays a zone delivers.
type DaysRule string

const (
	DaysDaily    DaysRule = "Daily"
	DaysWeekdays DaysRule = "Weekdays Only"
	DaysWeekends DaysRule = "Weekends Only"
	DaysCustom   DaysRule = "Custom"
)

// WeekdayNames are the short names accepted in a custom day list.
var WeekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Zone is a tenant-defined delivery area with its fee and schedule.
type Zone struct {
	ID             string
	TenantID       string
	Name           string
	Code           string
	Fee            float64
	MinOrderAmount float64
	Days           DaysRule
	CustomDays     string
	CutoffTime     string
	Areas          string
	PostalCodes    string
	EstimatedHours int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeliversOn reports whether the zone delivers on the weekday of t.
func (z Zone) DeliversOn(t time.Time) bool {
	day := t.Format("Mon")
	switch z.Days {
	case DaysDaily:
		return true
	case DaysWeekdays:
		return day != "Sat" && day != "Sun"
	case DaysWeekends:
		return day == "Sat" || day == "Sun"
	case DaysCustom:
		for _, d := range strings.Split(z.CustomDays, ",") {
			if strings.TrimSpace(d) == day {
				return true
			}
		}
	}
	return false
}

// WithinCutoff reports whether t is before the zone's order cutoff. Zones
// without a cutoff accept orders all day.
func (z Zone) WithinCutoff(t time.Time) bool {
	if z.CutoffTime == "" {
		return true
	}
	return t.Format("15:04") <= z.CutoffTime
}

// CoversArea reports whether area is in the zone's covered area list.
func (z Zone) CoversArea(area string) bool {
	area = strings.ToLower(strings.TrimSpace(area))
	if area == "" {
		return false
	}
	for _, line := range strings.Split(z.Areas, "\n") {
		if strings.ToLower(strings.TrimSpace(line)) == area {
			return true
		}
	}
	return false
}

// CoversPostalCode reports whether code is in the zone's postal code list.
func (z Zone) CoversPostalCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, line := range strings.Split(z.PostalCodes, "\n") {
		if strings.TrimSpace(line) == code {
			return true
		}
	}
	return false
}

// Availability describes whether a zone can take an order right now, with the
// first blocking reason when it cannot.
type Availability struct {
	Zone      Zone
	Available bool
	Reason    string
}
