package distro

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func verifyRecords(n int) []Data {
	out := make([]Data, n)
	for i := range out {
		out[i] = NewData(NewKey(fmt.Sprintf("c%02d", i), testType), OpVerify, []byte("1"))
	}
	return out
}

func sentRecordKeys(t *testing.T, sends []sent) []string {
	t.Helper()
	var keys []string
	for _, s := range sends {
		batch, err := DecodeBatchVerifyData(s.data)
		if err != nil {
			t.Fatalf("decode batch: %v", err)
		}
		for _, r := range batch {
			keys = append(keys, r.Key.ResourceKey)
		}
	}
	slices.Sort(keys)
	return keys
}

func TestVerifyExecuteTask_BatchCount(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		batchSize int
		want      int
	}{
		{"even split", 10, 2, 5},
		{"single batch", 10, 20, 1},
		{"remainder", 7, 3, 3},
		{"exact", 6, 6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestScheduler(t)
			agent := newRecordingAgent()
			cfg := testConfig()
			cfg.VerifyBatchSize = tt.batchSize
			cfg.VerifyBatchInterval = 20 * time.Millisecond

			records := verifyRecords(tt.records)
			task := NewVerifyExecuteTask(cfg, agent, testType, "peer", records, s, nil)
			if got := len(task.Batches()); got != tt.want {
				t.Fatalf("len(Batches()) = %d, want %d", got, tt.want)
			}

			task.Run()
			if tt.want > 1 {
				blockUntil(t, clock, tt.want-1)
			}
			clock.Advance(time.Duration(tt.want) * cfg.VerifyBatchInterval)
			waitFor(t, func() bool { return agent.verifyCount() == tt.want })

			var want []string
			for _, r := range records {
				want = append(want, r.Key.ResourceKey)
			}
			if got := sentRecordKeys(t, agent.verifiesCopy()); !slices.Equal(got, want) {
				t.Errorf("sent records = %v, want %v", got, want)
			}
		})
	}
}

func TestVerifyExecuteTask_Pacing(t *testing.T) {
	s, clock := newTestScheduler(t)
	agent := newRecordingAgent()
	cfg := testConfig()
	cfg.VerifyBatchSize = 2
	cfg.VerifyBatchInterval = 20 * time.Millisecond

	NewVerifyExecuteTask(cfg, agent, testType, "peer", verifyRecords(6), s, nil).Run()

	waitFor(t, func() bool { return agent.verifyCount() == 1 })
	blockUntil(t, clock, 2)

	clock.Advance(20 * time.Millisecond)
	waitFor(t, func() bool { return agent.verifyCount() == 2 })

	time.Sleep(10 * time.Millisecond)
	if got := agent.verifyCount(); got != 2 {
		t.Fatalf("third batch left early: %d sends", got)
	}

	clock.Advance(20 * time.Millisecond)
	waitFor(t, func() bool { return agent.verifyCount() == 3 })

	for _, v := range agent.verifiesCopy() {
		if v.target != "peer" {
			t.Errorf("target = %q, want peer", v.target)
		}
	}
}

func TestVerifyTimedTask_DispatchesToEveryPeer(t *testing.T) {
	s, _ := newTestScheduler(t)
	agent := newRecordingAgent()
	h := NewComponentHolder()
	h.RegisterDataStorage(testType, newMapStorage(testType, "c1", "1", "c2", "2"))
	h.RegisterTransportAgent(testType, agent)

	members := newMembers("self", "peer-a", "peer-b")
	NewVerifyTimedTask(testConfig(), h, members, s, nil, nil).Run()

	waitFor(t, func() bool { return agent.verifyCount() == 2 })
	var targets []string
	for _, v := range agent.verifiesCopy() {
		targets = append(targets, v.target)
	}
	slices.Sort(targets)
	if !slices.Equal(targets, []string{"peer-a", "peer-b"}) {
		t.Errorf("targets = %v", targets)
	}
}

func TestVerifyTimedTask_IsolatesFailingStorage(t *testing.T) {
	s, _ := newTestScheduler(t)
	h := NewComponentHolder()

	panicking := newMapStorage("a", "x", "1")
	panicking.panics = true
	failing := newMapStorage("b", "y", "1")
	failing.err = errors.New("disk on fire")
	healthy := newMapStorage("c", "z", "1")

	agents := map[string]*recordingAgent{}
	for rt, st := range map[string]*mapStorage{"a": panicking, "b": failing, "c": healthy} {
		agents[rt] = newRecordingAgent()
		h.RegisterDataStorage(rt, st)
		h.RegisterTransportAgent(rt, agents[rt])
	}
	// a type with storage but no agent is skipped too
	h.RegisterDataStorage("d", newMapStorage("d", "w", "1"))

	task := NewVerifyTimedTask(testConfig(), h, newMembers("self", "peer"), s, nil, nil)
	task.Run()
	task.Run()

	waitFor(t, func() bool { return agents["c"].verifyCount() == 2 })
	if agents["a"].verifyCount() != 0 || agents["b"].verifyCount() != 0 {
		t.Error("failing storages dispatched verify data")
	}
}

func TestVerifyTimedTask_Skips(t *testing.T) {
	s, _ := newTestScheduler(t)
	agent := newRecordingAgent()
	h := NewComponentHolder()
	h.RegisterDataStorage(testType, newMapStorage(testType, "c1", "1"))
	h.RegisterTransportAgent(testType, agent)

	NewVerifyTimedTask(testConfig(), h, newMembers("self"), s, nil, nil).Run()
	notReady := func(string) bool { return false }
	NewVerifyTimedTask(testConfig(), h, newMembers("self", "peer"), s, nil, notReady).Run()

	time.Sleep(20 * time.Millisecond)
	if got := agent.verifyCount(); got != 0 {
		t.Errorf("verify sent %d batches, want 0", got)
	}
}
