package domain

import (
	"encoding/json"
	"testing"
)

func TestEncodeEvent(t *testing.T) {
	data, err := EncodeEvent(EventWorkerJoined, Membership{FarmID: "f1", WorkerID: "w1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["event"]) != `"worker_joined"` {
		t.Errorf("event = %s", raw["event"])
	}

	var m Membership
	if err := json.Unmarshal(raw["data"], &m); err != nil {
		t.Fatal(err)
	}
	if m.FarmID != "f1" || m.WorkerID != "w1" {
		t.Errorf("unexpected payload: %+v", m)
	}
}

func TestEncodeEvent_Unencodable(t *testing.T) {
	if _, err := EncodeEvent("bad", make(chan int)); err == nil {
		t.Error("expected error for unencodable payload")
	}
}
