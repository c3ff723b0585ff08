package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollectorRecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpCheckpoint, 10*time.Millisecond)
	c.RecordTiming(OpCheckpoint, 30*time.Millisecond)
	c.RecordTiming(OpCheckpoint, 20*time.Millisecond)

	snap := c.Snapshot()
	if snap.Checkpoint == nil {
		t.Fatal("Checkpoint snapshot is nil")
	}
	if snap.Checkpoint.Count != 3 {
		t.Errorf("Count = %d, want 3", snap.Checkpoint.Count)
	}
	if snap.Checkpoint.MinTimeMs != 10 {
		t.Errorf("MinTimeMs = %d, want 10", snap.Checkpoint.MinTimeMs)
	}
	if snap.Checkpoint.MaxTimeMs != 30 {
		t.Errorf("MaxTimeMs = %d, want 30", snap.Checkpoint.MaxTimeMs)
	}
	if snap.Checkpoint.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %v, want 20", snap.Checkpoint.AvgTimeMs)
	}
	// Token fields stay nil for non-LLM operations.
	if snap.Checkpoint.TotalInputTokens != nil {
		t.Error("TotalInputTokens should be nil for checkpoint ops")
	}
}

func TestCollectorRecordLLMCall(t *testing.T) {
	c := NewCollector()

	c.RecordLLMCall(100*time.Millisecond, 500, 200)
	c.RecordLLMCall(200*time.Millisecond, 300, 100)

	snap := c.Snapshot()
	if snap.LLMCall == nil {
		t.Fatal("LLMCall snapshot is nil")
	}
	if snap.LLMCall.Count != 2 {
		t.Errorf("Count = %d, want 2", snap.LLMCall.Count)
	}
	if snap.LLMCall.TotalInputTokens == nil || *snap.LLMCall.TotalInputTokens != 800 {
		t.Errorf("TotalInputTokens = %v, want 800", snap.LLMCall.TotalInputTokens)
	}
	if snap.LLMCall.TotalOutputTokens == nil || *snap.LLMCall.TotalOutputTokens != 300 {
		t.Errorf("TotalOutputTokens = %v, want 300", snap.LLMCall.TotalOutputTokens)
	}
	if snap.LLMCall.AvgInputTokens == nil || *snap.LLMCall.AvgInputTokens != 400 {
		t.Errorf("AvgInputTokens = %v, want 400", snap.LLMCall.AvgInputTokens)
	}
}

func TestCollectorEmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	if snap.LLMCall != nil || snap.Checkpoint != nil || snap.Search != nil || snap.DBQuery != nil {
		t.Error("empty collector should produce nil operation snapshots")
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %v, want >= 0", snap.UptimeSeconds)
	}
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpSearch, time.Millisecond)
			c.RecordLLMCall(time.Millisecond, 10, 10)
			_ = c.Snapshot()
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.Search == nil || snap.Search.Count != 20 {
		t.Errorf("Search count = %v, want 20", snap.Search)
	}
	if snap.LLMCall == nil || snap.LLMCall.Count != 20 {
		t.Errorf("LLMCall count = %v, want 20", snap.LLMCall)
	}
}
