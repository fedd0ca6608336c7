package routing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voxgate/voxgate/internal/database/models"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// Branch names the outcome of a time-condition evaluation.
type Branch string

const (
	BranchBusiness   Branch = "business"
	BranchAfterHours Branch = "after_hours"
	BranchHoliday    Branch = "holiday"
)

// DaySchedule is one weekday's business window. Times are "HH:MM" in the
// tenant's timezone; the window is half-open, [StartTime, EndTime).
type DaySchedule struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// BusinessHours maps lowercase weekday names to schedules.
type BusinessHours map[string]DaySchedule

// Holiday is one date on which the holiday branch applies all day.
type Holiday struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled"`
}

// BranchOutcome is the action/destination pair a branch resolves to.
type BranchOutcome struct {
	Branch      Branch
	Action      string
	Destination string
}

// EvaluateTimeCondition classifies an instant against a condition. Holiday
// dates take precedence over the weekday window; anything outside both is
// after-hours. The result is a pure function of (condition, at).
func EvaluateTimeCondition(tc *models.TimeCondition, at time.Time) (*BranchOutcome, error) {
	loc, err := time.LoadLocation(tc.Timezone)
	if err != nil {
		return nil, voxerr.Validationf("timezone", "unknown timezone %q", tc.Timezone)
	}
	local := at.In(loc)

	if tc.Holidays != "" {
		var holidays []Holiday
		if err := json.Unmarshal([]byte(tc.Holidays), &holidays); err != nil {
			return nil, fmt.Errorf("decoding holidays: %w", err)
		}
		today := local.Format("2006-01-02")
		for _, h := range holidays {
			if h.Enabled && h.Date == today {
				return &BranchOutcome{
					Branch:      BranchHoliday,
					Action:      tc.HolidayAction,
					Destination: tc.HolidayDestination,
				}, nil
			}
		}
	}

	if tc.BusinessHours != "" {
		var hours BusinessHours
		if err := json.Unmarshal([]byte(tc.BusinessHours), &hours); err != nil {
			return nil, fmt.Errorf("decoding business hours: %w", err)
		}
		day := strings.ToLower(local.Weekday().String())
		if sched, ok := hours[day]; ok && sched.Enabled {
			now := local.Format("15:04")
			if now >= sched.StartTime && now < sched.EndTime {
				return &BranchOutcome{
					Branch:      BranchBusiness,
					Action:      tc.BusinessHoursAction,
					Destination: tc.BusinessHoursDestination,
				}, nil
			}
		}
	}

	return &BranchOutcome{
		Branch:      BranchAfterHours,
		Action:      tc.AfterHoursAction,
		Destination: tc.AfterHoursDestination,
	}, nil
}

// ValidateBusinessHours rejects malformed schedule JSON at write time.
func ValidateBusinessHours(raw string) error {
	if raw == "" {
		return nil
	}
	var hours BusinessHours
	if err := json.Unmarshal([]byte(raw), &hours); err != nil {
		return voxerr.Validationf("business_hours", "invalid schedule: %v", err)
	}
	for day, sched := range hours {
		if !validWeekday(day) {
			return voxerr.Validationf("business_hours", "unknown weekday %q", day)
		}
		if !sched.Enabled {
			continue
		}
		if !validClock(sched.StartTime) || !validClock(sched.EndTime) {
			return voxerr.Validationf("business_hours", "%s window must use HH:MM times", day)
		}
		if sched.StartTime >= sched.EndTime {
			return voxerr.Validationf("business_hours", "%s window is empty", day)
		}
	}
	return nil
}

// ValidateHolidays rejects malformed holiday JSON at write time.
func ValidateHolidays(raw string) error {
	if raw == "" {
		return nil
	}
	var holidays []Holiday
	if err := json.Unmarshal([]byte(raw), &holidays); err != nil {
		return voxerr.Validationf("holidays", "invalid holiday list: %v", err)
	}
	for _, h := range holidays {
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return voxerr.Validationf("holidays", "invalid date %q", h.Date)
		}
	}
	return nil
}

func validWeekday(day string) bool {
	switch day {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
