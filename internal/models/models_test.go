package models

import (
	"testing"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDeriveLevel(t *testing.T) {
	cases := []struct {
		count    int
		level    AlertLevel
		priority Priority
	}{
		{1, LevelLow, PriorityLow},
		{2, LevelMedium, PriorityMedium},
		{3, LevelHigh, PriorityHigh},
		{4, LevelHigh, PriorityHigh},
		{5, LevelCritical, PriorityHigh},
		{50, LevelCritical, PriorityHigh},
	}
	for _, tc := range cases {
		level, priority := DeriveLevel(tc.count)
		assert.Equal(t, tc.level, level, "count %d", tc.count)
		assert.Equal(t, tc.priority, priority, "count %d", tc.count)

		again, _ := DeriveLevel(tc.count)
		assert.Equal(t, level, again)
	}
}

func TestDeriveLevelIsMonotonic(t *testing.T) {
	prev := -1
	for count := 1; count <= 10; count++ {
		level, _ := DeriveLevel(count)
		assert.GreaterOrEqual(t, level.Rank(), prev)
		prev = level.Rank()
	}
}

func TestNextPressCount(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, NextPressCount(1, base, base.Add(10*time.Second), ReinforceWindow))
	assert.Equal(t, 5, NextPressCount(4, base, base.Add(ReinforceWindow), ReinforceWindow))
	assert.Equal(t, 1, NextPressCount(4, base, base.Add(130*time.Second), ReinforceWindow))
	assert.Equal(t, 1, NextPressCount(0, base, base, ReinforceWindow))
}

func TestCheckTransitionMatrix(t *testing.T) {
	cases := []struct {
		current AlertStatus
		target  AlertStatus
		role    Role
		kind    errors.Kind // empty means allowed
	}{
		{StatusActive, StatusContacted, RoleContact, ""},
		{StatusActive, StatusContacted, RoleUser, ""},
		{StatusContacted, StatusContacted, RoleContact, ""},
		{StatusContacted, StatusResolved, RoleContact, ""},
		{StatusContacted, StatusResolved, RoleUser, ""},
		{StatusActive, StatusResolved, RoleContact, errors.KindConflict},
		{StatusActive, StatusResolved, RoleUser, errors.KindConflict},
		{StatusActive, StatusCancelled, RoleUser, ""},
		{StatusContacted, StatusCancelled, RoleUser, ""},
		{StatusActive, StatusCancelled, RoleContact, errors.KindForbidden},
		{StatusContacted, StatusActive, RoleUser, errors.KindConflict},
		{StatusResolved, StatusContacted, RoleContact, errors.KindConflict},
		{StatusResolved, StatusResolved, RoleUser, errors.KindConflict},
		{StatusCancelled, StatusCancelled, RoleUser, errors.KindConflict},
		{StatusActive, AlertStatus("escalated"), RoleUser, errors.KindValidation},
	}
	for _, tc := range cases {
		err := CheckTransition(tc.current, tc.target, tc.role)
		if tc.kind == "" {
			assert.NoError(t, err, "%s -> %s by %s", tc.current, tc.target, tc.role)
			continue
		}
		assert.True(t, errors.IsKind(err, tc.kind), "%s -> %s by %s: got %v", tc.current, tc.target, tc.role, err)
	}
}

func TestActorChannel(t *testing.T) {
	assert.Equal(t, "user:u1", Actor{ID: "u1", Role: RoleUser}.Channel())
	assert.Equal(t, "contact:c1", Actor{ID: "c1", Role: RoleContact}.Channel())
}
