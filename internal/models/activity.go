package models

// ActivityDay is one calendar day in the trailing activity window. The Date key
// is formatted as 2006-01-02 under the tracker's fixed reference offset.
type ActivityDay struct {
	Date        string `json:"date"`
	HasActivity bool   `json:"has_activity"`
	IsToday     bool   `json:"is_today"`
}

// ActivityWindow is an ordered trailing window of days ending at the as-of date.
type ActivityWindow struct {
	Days []ActivityDay `json:"days"`
}

// StreakState is a derived view recomputed on demand from completion history;
// it is never persisted as authoritative state. Known is false when the history
// is unavailable or malformed, so callers can render "not yet available" rather
// than a misleading zero-day streak.
type StreakState struct {
	Known                bool `json:"known"`
	CurrentStreak        int  `json:"current_streak"`
	LongestStreak        int  `json:"longest_streak"`
	MonthlyCompleted     int  `json:"monthly_completed"`
	NextMilestone        int  `json:"next_milestone"`
	RemainingToMilestone int  `json:"remaining_to_milestone"`
}

// UnknownStreakState is the explicit marker for missing or malformed history.
func UnknownStreakState() StreakState {
	return StreakState{Known: false}
}
