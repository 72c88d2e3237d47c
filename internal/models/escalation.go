package models

import "time"

// ReinforceWindow is the gap after which a press starts a new escalation cycle.
const ReinforceWindow = 120 * time.Second

// Severity floor applied to every freshly created alert.
const (
	FloorLevel    = LevelMedium
	FloorPriority = PriorityMedium
)

// DeriveLevel maps a press count onto alert level and priority.
func DeriveLevel(pressCount int) (AlertLevel, Priority) {
	switch {
	case pressCount >= 5:
		return LevelCritical, PriorityHigh
	case pressCount >= 3:
		return LevelHigh, PriorityHigh
	case pressCount >= 2:
		return LevelMedium, PriorityMedium
	default:
		return LevelLow, PriorityLow
	}
}

// Rank orders levels low < medium < high < critical.
func (l AlertLevel) Rank() int {
	switch l {
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// NextPressCount applies the decay rule: a press more than window after the
// previous one restarts the count at 1.
func NextPressCount(current int, lastPress, now time.Time, window time.Duration) int {
	if now.Sub(lastPress) > window || current < 1 {
		return 1
	}
	return current + 1
}
