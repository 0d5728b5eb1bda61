package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/prepforge/assessment-engine/internal/errors"
)

// day returns noon UTC on the given date, a safe distance from the UTC+05:30
// day boundary.
func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

func TestEvaluate_ConsecutiveDaysEndingToday(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.March, 1),
		day(2025, time.March, 2),
		day(2025, time.March, 3),
	}

	_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 3))
	require.NoError(t, err)

	assert.True(t, state.Known)
	assert.Equal(t, 3, state.CurrentStreak)
	assert.Equal(t, 3, state.LongestStreak)
}

func TestEvaluate_GapBeforeTodayBreaksStreak(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.March, 1),
		day(2025, time.March, 2),
		day(2025, time.March, 3),
	}

	// Two idle days after the run: the streak is over, but the longest run is kept.
	_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 5))
	require.NoError(t, err)

	assert.Equal(t, 0, state.CurrentStreak)
	assert.Equal(t, 3, state.LongestStreak)
}

func TestEvaluate_TodayPendingKeepsStreakAlive(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.March, 1),
		day(2025, time.March, 2),
		day(2025, time.March, 3),
	}

	// Nothing completed on the 4th yet; the run ending yesterday still counts.
	_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 4))
	require.NoError(t, err)

	assert.Equal(t, 3, state.CurrentStreak)
	assert.Equal(t, 3, state.LongestStreak)
}

func TestEvaluate_CurrentNeverExceedsLongest(t *testing.T) {
	tracker := NewTracker()

	histories := [][]time.Time{
		nil,
		{},
		{day(2025, time.January, 10)},
		{day(2025, time.January, 1), day(2025, time.January, 2), day(2025, time.January, 5)},
		{day(2025, time.February, 25), day(2025, time.February, 26), day(2025, time.February, 28), day(2025, time.March, 1)},
	}

	for _, history := range histories {
		_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 1))
		require.NoError(t, err)
		assert.LessOrEqual(t, state.CurrentStreak, state.LongestStreak)
	}
}

func TestEvaluate_NilHistoryIsUnknown(t *testing.T) {
	tracker := NewTracker()

	window, state, err := tracker.Evaluate(nil, 7, day(2025, time.March, 3))
	require.NoError(t, err)

	assert.False(t, state.Known)
	require.NotNil(t, window)
	assert.Len(t, window.Days, 7)
}

func TestEvaluate_EmptyHistoryIsZeroActivity(t *testing.T) {
	tracker := NewTracker()

	_, state, err := tracker.Evaluate([]time.Time{}, 7, day(2025, time.March, 3))
	require.NoError(t, err)

	assert.True(t, state.Known)
	assert.Equal(t, 0, state.CurrentStreak)
	assert.Equal(t, 0, state.LongestStreak)
	assert.Equal(t, 5, state.NextMilestone)
	assert.Equal(t, 5, state.RemainingToMilestone)
}

func TestEvaluate_MalformedHistoryDegradesToUnknown(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{day(2025, time.March, 1), {}}

	_, state, err := tracker.Evaluate(history, 7, day(2025, time.March, 3))
	require.Error(t, err)

	var ie *apperrors.DataIntegrityError
	assert.ErrorAs(t, err, &ie)
	assert.False(t, state.Known)
}

func TestBuildActivityWindow(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.March, 2),
		day(2025, time.March, 4),
	}

	window := tracker.BuildActivityWindow(history, 5, day(2025, time.March, 4))
	require.Len(t, window.Days, 5)

	assert.Equal(t, "2025-02-28", window.Days[0].Date)
	assert.Equal(t, "2025-03-04", window.Days[4].Date)

	var activeDates []string
	for _, d := range window.Days {
		if d.HasActivity {
			activeDates = append(activeDates, d.Date)
		}
	}
	assert.Equal(t, []string{"2025-03-02", "2025-03-04"}, activeDates)

	assert.True(t, window.Days[4].IsToday)
	for _, d := range window.Days[:4] {
		assert.False(t, d.IsToday)
	}
}

func TestNormalizeToCalendarDay_ReferenceOffset(t *testing.T) {
	tracker := NewTracker()

	// 20:00 UTC is already the next day at UTC+05:30.
	ts := time.Date(2025, time.March, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-02", tracker.NormalizeToCalendarDay(ts))

	// 18:00 UTC is still the same day.
	ts = time.Date(2025, time.March, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-01", tracker.NormalizeToCalendarDay(ts))
}

func TestEvaluate_MultipleCompletionsSameDayCountOnce(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.March, 3),
		day(2025, time.March, 3).Add(2 * time.Hour),
		day(2025, time.March, 3).Add(4 * time.Hour),
	}

	_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 3))
	require.NoError(t, err)

	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 1, state.MonthlyCompleted)
}

func TestEvaluate_MonthlyCompleted(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.February, 27),
		day(2025, time.February, 28),
		day(2025, time.March, 1),
		day(2025, time.March, 2),
	}

	_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, state.MonthlyCompleted)
}

func TestNextMilestone(t *testing.T) {
	tests := []struct {
		current int
		want    int
	}{
		{0, 5},
		{4, 5},
		{5, 10},
		{7, 10},
		{20, 30},
		{99, 100},
		{100, 110},
		{150, 160},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextMilestone(tt.current), "current=%d", tt.current)
	}
}

func TestEvaluate_MilestoneRemaining(t *testing.T) {
	tracker := NewTracker()
	history := []time.Time{
		day(2025, time.March, 1), day(2025, time.March, 2), day(2025, time.March, 3),
		day(2025, time.March, 4), day(2025, time.March, 5), day(2025, time.March, 6),
		day(2025, time.March, 7),
	}

	_, state, err := tracker.Evaluate(history, 30, day(2025, time.March, 7))
	require.NoError(t, err)

	assert.Equal(t, 7, state.CurrentStreak)
	assert.Equal(t, 10, state.NextMilestone)
	assert.Equal(t, 3, state.RemainingToMilestone)
}

func TestEvaluate_LongestRunOutsideWindow(t *testing.T) {
	tracker := NewTracker()

	// A five-day run far in the past, then a two-day run ending at asOf. The
	// longest streak must come from the full history, not the window.
	history := []time.Time{
		day(2024, time.June, 1), day(2024, time.June, 2), day(2024, time.June, 3),
		day(2024, time.June, 4), day(2024, time.June, 5),
		day(2025, time.March, 2), day(2025, time.March, 3),
	}

	_, state, err := tracker.Evaluate(history, 7, day(2025, time.March, 3))
	require.NoError(t, err)

	assert.Equal(t, 2, state.CurrentStreak)
	assert.Equal(t, 5, state.LongestStreak)
}
