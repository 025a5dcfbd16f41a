package incident

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sosdesk/intake/app/models"
	"github.com/sosdesk/intake/internal/pkg/apperror"
)

func TestCanTransition(t *testing.T) {
	veracity := 0.2
	notPlausible := false

	tests := []struct {
		name    string
		inc     models.Incident
		to      models.IncidentStatus
		wantErr bool
	}{
		{"received to text analysis", models.Incident{Status: models.StatusReceived}, models.StatusInTextAnalysis, false},
		{"received to received", models.Incident{Status: models.StatusReceived}, models.StatusReceived, false},
		{"text analysis again", models.Incident{Status: models.StatusInTextAnalysis}, models.StatusInTextAnalysis, false},
		{"analyzed back to received", models.Incident{Status: models.StatusAnalyzed}, models.StatusReceived, true},
		{"approve analyzed", models.Incident{Status: models.StatusAnalyzed}, models.StatusApproved, false},
		{"approve received", models.Incident{Status: models.StatusReceived}, models.StatusApproved, true},
		{"approve implausible", models.Incident{Status: models.StatusAnalyzed, VeracityScore: &veracity, Plausible: &notPlausible}, models.StatusApproved, true},
		{"approve with score but unknown plausibility", models.Incident{Status: models.StatusAnalyzed, VeracityScore: &veracity}, models.StatusApproved, true},
		{"cancel approved", models.Incident{Status: models.StatusApproved}, models.StatusCanceled, true},
		{"reject approved", models.Incident{Status: models.StatusApproved}, models.StatusRejected, true},
		{"re-analyze approved", models.Incident{Status: models.StatusApproved}, models.StatusInImageAnalysis, true},
		{"leave rejected", models.Incident{Status: models.StatusRejected}, models.StatusAnalyzed, true},
		{"leave canceled", models.Incident{Status: models.StatusCanceled}, models.StatusCanceled, true},
		{"cancel analyzed", models.Incident{Status: models.StatusAnalyzed}, models.StatusCanceled, false},
		{"analyzed back to text analysis", models.Incident{Status: models.StatusAnalyzed}, models.StatusInTextAnalysis, true},
		{"analyzed back to image analysis", models.Incident{Status: models.StatusAnalyzed}, models.StatusInImageAnalysis, true},
		{"image analysis back to text analysis", models.Incident{Status: models.StatusInImageAnalysis}, models.StatusInTextAnalysis, true},
		{"text analysis to image analysis", models.Incident{Status: models.StatusInTextAnalysis}, models.StatusInImageAnalysis, false},
		{"image analysis to analyzed", models.Incident{Status: models.StatusInImageAnalysis}, models.StatusAnalyzed, false},
		{"unknown status", models.Incident{Status: models.StatusReceived}, models.IncidentStatus("DISPATCHED"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(&tt.inc, tt.to)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, apperror.KindInvalidRequest, apperror.KindOf(err))
		})
	}
}

func TestForcedRejectionOfApproved(t *testing.T) {
	inc := &models.Incident{Status: models.StatusApproved}
	assert.NoError(t, checkTransition(inc, models.StatusRejected, forcedMove))
	assert.Error(t, checkTransition(inc, models.StatusCanceled, forcedMove))

	closed := &models.Incident{Status: models.StatusCanceled}
	assert.Error(t, checkTransition(closed, models.StatusRejected, forcedMove))
}

func TestAnalysisHandlersReenterAnalysis(t *testing.T) {
	analyzed := &models.Incident{Status: models.StatusAnalyzed}
	assert.NoError(t, checkTransition(analyzed, models.StatusInImageAnalysis, analysisMove))
	assert.NoError(t, checkTransition(analyzed, models.StatusInTextAnalysis, analysisMove))
	assert.Error(t, checkTransition(analyzed, models.StatusInTextAnalysis, operatorMove))

	approved := &models.Incident{Status: models.StatusApproved}
	assert.Error(t, checkTransition(approved, models.StatusInTextAnalysis, analysisMove))
	assert.Error(t, checkTransition(analyzed, models.StatusReceived, analysisMove))
}

func intPtr(v int) *int { return &v }

func TestFusePriority(t *testing.T) {
	tests := []struct {
		name        string
		text, image *int
		want        *int
	}{
		{"both", intPtr(2), intPtr(4), intPtr(3)},
		{"both high", intPtr(5), intPtr(3), intPtr(4)},
		{"both low", intPtr(1), intPtr(1), intPtr(1)},
		{"text leads", intPtr(1), intPtr(5), intPtr(3)},
		{"text only", intPtr(2), nil, intPtr(2)},
		{"image only", nil, intPtr(4), intPtr(4)},
		{"none", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FusePriority(tt.text, tt.image))
		})
	}
}

func TestApplyFusionReportsChange(t *testing.T) {
	inc := &models.Incident{TextPriority: intPtr(2)}
	assert.True(t, applyFusion(inc))
	assert.Equal(t, 2, *inc.FinalPriority)
	assert.False(t, applyFusion(inc))

	inc.ImagePriority = intPtr(4)
	assert.True(t, applyFusion(inc))
	assert.Equal(t, 3, *inc.FinalPriority)
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()
	counter := map[string]int{}
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		key := "a"
		if i%2 == 0 {
			key = "b"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()
			// counter is shared across keys.
			unlockAll := locks.Lock("counter")
			counter[key]++
			unlockAll()
		}(key)
	}
	wg.Wait()

	assert.Equal(t, 25, counter["a"])
	assert.Equal(t, 25, counter["b"])
	assert.Equal(t, 0, locks.size())
}
