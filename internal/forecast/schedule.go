// Package forecast projects account balances forward in time.
//
// A projection starts from the sum of the user's included account balances,
// then walks every active recurring expense from its next due date up to the
// target date and adds each occurrence, priced with the history version that
// was in force on that day. Known one-off future transactions are added on top.
package forecast

import (
	"fmt"
	"sync"

	"budgetcal/internal/core"
)

// Schedule generates the occurrence dates of one frequency. Nth is computed
// from the anchor rather than from the previous occurrence so that month-end
// clamping never drifts (Jan 31, Feb 28, Mar 31).
type Schedule interface {
	Nth(anchor core.Date, n int) core.Date
}

// DaySchedule repeats every fixed number of days.
type DaySchedule struct {
	Days int
}

func (s DaySchedule) Nth(anchor core.Date, n int) core.Date {
	return anchor.AddDays(s.Days * n)
}

// MonthSchedule repeats every fixed number of calendar months, clamping the
// day of month to the length of shorter months.
type MonthSchedule struct {
	Months int
}

func (s MonthSchedule) Nth(anchor core.Date, n int) core.Date {
	return anchor.AddMonthsClamped(s.Months * n)
}

var (
	schedulesMu sync.RWMutex
	schedules   = map[core.Frequency]Schedule{
		core.Weekly:      DaySchedule{Days: 7},
		core.Fortnightly: DaySchedule{Days: 14},
		core.Monthly:     MonthSchedule{Months: 1},
		core.Quarterly:   MonthSchedule{Months: 3},
		core.Yearly:      MonthSchedule{Months: 12},
	}
)

// ScheduleFor returns the schedule registered for a frequency.
func ScheduleFor(f core.Frequency) (Schedule, error) {
	schedulesMu.RLock()
	defer schedulesMu.RUnlock()
	s, ok := schedules[f]
	if !ok {
		return nil, fmt.Errorf("%w: no schedule for %q", core.ErrInvalidFrequency, string(f))
	}
	return s, nil
}

// RegisterSchedule installs or replaces the schedule for a frequency.
func RegisterSchedule(f core.Frequency, s Schedule) {
	schedulesMu.Lock()
	defer schedulesMu.Unlock()
	schedules[f] = s
}
