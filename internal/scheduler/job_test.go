package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func result(name string, success bool) JobResult {
	now := time.Now()
	return JobResult{
		JobName:   name,
		StartTime: now,
		EndTime:   now.Add(time.Second),
		Duration:  time.Second,
		Success:   success,
	}
}

func TestJobHistory_AddResultCapsLength(t *testing.T) {
	h := &JobHistory{}

	for i := 0; i < historyLimit+20; i++ {
		h.AddResult(result("index_update", true))
	}

	assert.Len(t, h.Results, historyLimit)
}

func TestJobHistory_Latest(t *testing.T) {
	h := &JobHistory{}
	h.AddResult(result("index_update", true))
	h.AddResult(result("index_update", false))
	h.AddResult(result("index_update", true))

	latest := h.Latest(2)
	assert.Len(t, latest, 2)
	assert.False(t, latest[0].Success)
	assert.True(t, latest[1].Success)

	// n larger than history returns everything.
	assert.Len(t, h.Latest(10), 3)
	assert.Empty(t, (&JobHistory{}).Latest(5))
}

func TestJobHistory_FailedAndSuccessRate(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.SuccessRate())

	h.AddResult(result("dividend_check", true))
	h.AddResult(result("dividend_check", false))
	h.AddResult(result("dividend_check", true))
	h.AddResult(result("dividend_check", true))

	assert.Len(t, h.Failed(), 1)
	assert.InDelta(t, 0.75, h.SuccessRate(), 1e-9)
}
