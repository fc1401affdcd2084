package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRecommend(t *testing.T) {
	before := testutil.ToFloat64(RecommendRequests.WithLabelValues("ok"))
	RecordRecommend("ok", 20*time.Millisecond)
	if got := testutil.ToFloat64(RecommendRequests.WithLabelValues("ok")); got != before+1 {
		t.Fatalf("ok counter = %v, want %v", got, before+1)
	}
}

func TestSetBreakerState(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"half-open", 1},
		{"open", 2},
	}
	for _, tt := range tests {
		SetBreakerState("itunes", tt.state)
		if got := testutil.ToFloat64(BreakerState.WithLabelValues("itunes")); got != tt.want {
			t.Errorf("state %s = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestCounters(t *testing.T) {
	rej := testutil.ToFloat64(FilterRejections.WithLabelValues("filter.genre"))
	RecordFilterRejection("filter.genre")
	if testutil.ToFloat64(FilterRejections.WithLabelValues("filter.genre")) != rej+1 {
		t.Fatal("filter rejection not counted")
	}

	failed := testutil.ToFloat64(HistoryWrites.WithLabelValues("failed"))
	RecordHistoryWrite(errors.New("disk full"))
	if testutil.ToFloat64(HistoryWrites.WithLabelValues("failed")) != failed+1 {
		t.Fatal("history failure not counted")
	}

	SetIndexShape(12, 44)
	if testutil.ToFloat64(IndexSize) != 12 || testutil.ToFloat64(IndexDim) != 44 {
		t.Fatal("index shape not set")
	}
}
