package pool

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestStatsAvgResponseEMA(t *testing.T) {
	s := newPoolStats()

	// The average starts at zero and folds each sample in at 10%.
	s.updateAvgResponse(10 * time.Millisecond)
	if got := s.snapshot(0, 0, 0).AvgResponseMs; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("AvgResponseMs after first sample = %v, want 1.0", got)
	}

	s.updateAvgResponse(10 * time.Millisecond)
	if got := s.snapshot(0, 0, 0).AvgResponseMs; math.Abs(got-1.9) > 1e-9 {
		t.Errorf("AvgResponseMs after second sample = %v, want 1.9", got)
	}
}

func TestStatsRecordOperation(t *testing.T) {
	s := newPoolStats()

	s.recordOperation(10*time.Millisecond, nil)
	s.recordOperation(time.Hour, errors.New("fail"))

	snap := s.snapshot(0, 0, 0)
	if snap.Operations != 2 {
		t.Errorf("Operations = %d, want 2", snap.Operations)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
	// Failed operations must not pollute the latency average.
	if math.Abs(snap.AvgResponseMs-1.0) > 1e-9 {
		t.Errorf("AvgResponseMs = %v, want 1.0", snap.AvgResponseMs)
	}
}

func TestStatsAverages(t *testing.T) {
	s := newPoolStats()

	s.recordAcquire(4*time.Millisecond, false)
	s.recordAcquire(8*time.Millisecond, true)
	s.recordConnectionCreated(10*time.Millisecond, 1)
	s.recordConnectionCreated(20*time.Millisecond, 2)

	snap := s.snapshot(2, 0, 0)
	if snap.Acquires != 2 {
		t.Errorf("Acquires = %d, want 2", snap.Acquires)
	}
	if snap.AcquiresWaited != 1 {
		t.Errorf("AcquiresWaited = %d, want 1", snap.AcquiresWaited)
	}
	if math.Abs(snap.AvgAcquireWaitMs-6.0) > 1e-9 {
		t.Errorf("AvgAcquireWaitMs = %v, want 6.0", snap.AvgAcquireWaitMs)
	}
	if snap.Created != 2 {
		t.Errorf("Created = %d, want 2", snap.Created)
	}
	if math.Abs(snap.AvgDialMs-15.0) > 1e-9 {
		t.Errorf("AvgDialMs = %v, want 15.0", snap.AvgDialMs)
	}
}

func TestStatsPeaks(t *testing.T) {
	s := newPoolStats()

	s.recordConnectionCreated(0, 3)
	s.recordConnectionCreated(0, 2)
	s.recordWaiting(5)
	s.recordWaiting(2)

	snap := s.snapshot(2, 0, 0)
	if snap.PeakConnections != 3 {
		t.Errorf("PeakConnections = %d, want 3", snap.PeakConnections)
	}
	if snap.PeakWaiting != 5 {
		t.Errorf("PeakWaiting = %d, want 5", snap.PeakWaiting)
	}
}

func TestStatsSnapshotGauges(t *testing.T) {
	s := newPoolStats()

	snap := s.snapshot(10, 4, 2)
	if snap.Total != 10 || snap.Idle != 4 || snap.Waiting != 2 {
		t.Errorf("gauges = %d/%d/%d, want 10/4/2", snap.Total, snap.Idle, snap.Waiting)
	}
	if snap.Active != 6 {
		t.Errorf("Active = %d, want 6", snap.Active)
	}

	// Active never goes negative even on inconsistent inputs.
	if snap := s.snapshot(3, 5, 0); snap.Active != 0 {
		t.Errorf("Active = %d, want 0 (clamped)", snap.Active)
	}
}
