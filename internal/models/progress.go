package models

// DailyProgress summarizes one pairing's slots for a single day from the
// calling member's perspective. Derived on demand from slot rows; never a
// source of truth.
type DailyProgress struct {
	Day                   string `json:"day"`
	TotalSlots            int    `json:"total_slots"`
	AnsweredByUser        int    `json:"answered_by_user"`
	AnsweredByCounterpart int    `json:"answered_by_counterpart"`
	CompletedSlots        int    `json:"completed_slots"`
	MatchCount            int    `json:"match_count"`
}

// LifetimeProgress summarizes a pairing's whole history for one member.
type LifetimeProgress struct {
	DaysPlayed     int     `json:"days_played"`
	TotalAnswered  int     `json:"total_answered"`
	TotalCompleted int     `json:"total_completed"`
	TotalMatches   int     `json:"total_matches"`
	MatchRate      float64 `json:"match_rate"`
}
