package utils

import (
	"log"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar gates streaming work on exchange hours using
// scmhub/calendar (MIC codes per ISO 10383).
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar loads the calendar for a MIC code. The platform's reference
// deployment trades Indian equities, so the fallback models NSE/BSE hours
// (09:15-15:30 IST, Mon-Fri) when the library has no entry for the MIC.
func GetCalendar(mic string) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		log.Printf("WARNING: no calendar for MIC '%s', using IST fallback (Mon-Fri 09:15-15:30).", mic)
		loc, _ := time.LoadLocation("Asia/Kolkata")
		if loc == nil {
			loc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: loc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 09:15 - 15:30 IST
		afterOpen := hour > 9 || (hour == 9 && minute >= 15)
		beforeClose := hour < 15 || (hour == 15 && minute < 30)
		return afterOpen && beforeClose
	}

	return tc.Calendar.IsOpen(t)
}
