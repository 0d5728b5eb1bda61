package streak

import (
	"sort"
	"time"

	apperrors "github.com/prepforge/assessment-engine/internal/errors"
	"github.com/prepforge/assessment-engine/internal/models"
)

// The product buckets all timestamps under one fixed reference offset rather
// than the viewer's locale. UTC+05:30 is the shipped default; a deployment can
// override it through NewTrackerAt.
const DefaultOffsetMinutes = 330

const dayKeyFormat = "2006-01-02"

// Milestone ladder for progress messaging. Past the last rung the next target
// is always ten days out.
var milestones = []int{5, 10, 15, 20, 30, 50, 100}

// Tracker turns a history of completion timestamps into streak and calendar
// analytics. All methods are pure transforms over immutable input; a Tracker is
// safe for concurrent use.
type Tracker struct {
	loc *time.Location
}

func NewTracker() *Tracker {
	return NewTrackerAt(DefaultOffsetMinutes)
}

func NewTrackerAt(offsetMinutes int) *Tracker {
	return &Tracker{loc: time.FixedZone("reference", offsetMinutes*60)}
}

// dayKey is the number of calendar days since the epoch under the reference
// offset. Consecutive days differ by exactly one.
func (t *Tracker) dayKey(ts time.Time) int {
	local := ts.In(t.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return int(midnight.Unix() / 86400)
}

func (t *Tracker) dayLabel(ts time.Time) string {
	return ts.In(t.loc).Format(dayKeyFormat)
}

// NormalizeToCalendarDay maps a timestamp to its date-only key under the fixed
// reference offset.
func (t *Tracker) NormalizeToCalendarDay(ts time.Time) string {
	return t.dayLabel(ts)
}

// Evaluate builds the trailing activity window and the derived streak state in
// one pass over the history.
//
// A nil history means "history unavailable" and yields the explicit unknown
// state; an empty non-nil history is genuine zero activity. Malformed entries
// (zero timestamps) also degrade to the unknown state, with a typed error so
// the caller can report the corruption instead of rendering misleading zeros.
func (t *Tracker) Evaluate(history []time.Time, windowDays int, asOf time.Time) (*models.ActivityWindow, models.StreakState, error) {
	if windowDays <= 0 {
		return nil, models.UnknownStreakState(), apperrors.NewValidationError(
			"window_days", "must be positive", windowDays)
	}
	if history == nil {
		return t.emptyWindow(windowDays, asOf), models.UnknownStreakState(), nil
	}
	for _, ts := range history {
		if ts.IsZero() {
			return t.emptyWindow(windowDays, asOf), models.UnknownStreakState(),
				apperrors.NewDataIntegrityError("completion_history", "zero timestamp in history")
		}
	}

	activeDays := t.uniqueDayKeys(history)
	window := t.buildWindow(activeDays, windowDays, asOf)
	current := t.currentStreak(activeDays, asOf)
	longest := t.longestStreak(activeDays, current)
	milestone := NextMilestone(current)

	state := models.StreakState{
		Known:                true,
		CurrentStreak:        current,
		LongestStreak:        longest,
		MonthlyCompleted:     t.monthlyCompleted(history, asOf),
		NextMilestone:        milestone,
		RemainingToMilestone: milestone - current,
	}
	return window, state, nil
}

// BuildActivityWindow returns windowDays entries ending at asOf. The window
// only looks backward; days after asOf never appear.
func (t *Tracker) BuildActivityWindow(history []time.Time, windowDays int, asOf time.Time) *models.ActivityWindow {
	return t.buildWindow(t.uniqueDayKeys(history), windowDays, asOf)
}

func (t *Tracker) buildWindow(activeDays map[int]struct{}, windowDays int, asOf time.Time) *models.ActivityWindow {
	asOfKey := t.dayKey(asOf)
	days := make([]models.ActivityDay, 0, windowDays)
	for key := asOfKey - windowDays + 1; key <= asOfKey; key++ {
		_, active := activeDays[key]
		days = append(days, models.ActivityDay{
			Date:        labelForKey(key),
			HasActivity: active,
			IsToday:     key == asOfKey,
		})
	}
	return &models.ActivityWindow{Days: days}
}

func (t *Tracker) emptyWindow(windowDays int, asOf time.Time) *models.ActivityWindow {
	return t.buildWindow(nil, windowDays, asOf)
}

// currentStreak counts consecutive active days ending at the as-of day. When
// the as-of day itself has no activity yet, the run is measured ending at the
// previous day instead: "today pending" does not break an otherwise-active
// run, but any earlier gap does.
func (t *Tracker) currentStreak(activeDays map[int]struct{}, asOf time.Time) int {
	cursor := t.dayKey(asOf)
	if _, active := activeDays[cursor]; !active {
		cursor--
	}

	streak := 0
	for {
		if _, active := activeDays[cursor]; !active {
			break
		}
		streak++
		cursor--
	}
	return streak
}

// longestStreak scans the deduplicated ascending day keys once, tracking the
// longest run of consecutive days. The final max against the current streak
// guards against an incomplete full history disagreeing with the window.
func (t *Tracker) longestStreak(activeDays map[int]struct{}, current int) int {
	keys := make([]int, 0, len(activeDays))
	for key := range activeDays {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	longest, run := 0, 0
	for i, key := range keys {
		if i > 0 && key == keys[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	if current > longest {
		longest = current
	}
	return longest
}

// monthlyCompleted counts unique active calendar days inside the reference
// month of asOf. The result is naturally bounded by the days in that month.
func (t *Tracker) monthlyCompleted(history []time.Time, asOf time.Time) int {
	ref := asOf.In(t.loc)
	seen := make(map[int]struct{})
	for _, ts := range history {
		local := ts.In(t.loc)
		if local.Year() == ref.Year() && local.Month() == ref.Month() {
			seen[local.Day()] = struct{}{}
		}
	}
	return len(seen)
}

// NextMilestone returns the first ladder rung strictly greater than current,
// or current+10 once the ladder is exhausted.
func NextMilestone(current int) int {
	for _, rung := range milestones {
		if rung > current {
			return rung
		}
	}
	return current + 10
}

func (t *Tracker) uniqueDayKeys(history []time.Time) map[int]struct{} {
	keys := make(map[int]struct{}, len(history))
	for _, ts := range history {
		if ts.IsZero() {
			continue
		}
		keys[t.dayKey(ts)] = struct{}{}
	}
	return keys
}

func labelForKey(key int) string {
	return time.Unix(int64(key)*86400, 0).UTC().Format(dayKeyFormat)
}
