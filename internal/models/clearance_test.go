package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleOpenWindow(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(14 * 24 * time.Hour)
	schedule := ClearanceSchedule{IsActive: true, StartTime: start, EndTime: end}

	assert.False(t, schedule.Open(start.Add(-time.Second)))
	assert.True(t, schedule.Open(start))
	assert.True(t, schedule.Open(start.Add(7*24*time.Hour)))
	assert.False(t, schedule.Open(end), "window is half-open, end instant excluded")
}

func TestScheduleOpenRequiresActive(t *testing.T) {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	schedule := ClearanceSchedule{IsActive: false, StartTime: start, EndTime: start.Add(time.Hour)}
	assert.False(t, schedule.Open(start.Add(time.Minute)))
}
