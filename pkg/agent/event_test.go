// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventJSONRoundTrip(t *testing.T) {
	event := NewEvent("inv-7")
	event.Timestamp = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	event.Author = "planner"
	event.Branch = "seq/child1"
	event.TurnComplete = true
	event.ErrorCode = "model_error"
	event.ErrorMessage = "boom"
	event.LongRunningToolIDs = []string{"call_3"}
	event.Actions = EventActions{
		StateDelta:      map[string]any{"k": "v", "temp:k": float64(3)},
		ArtifactDelta:   map[string]int64{"file.txt": 3},
		TransferToAgent: "other_agent",
		Escalate:        true,
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != event.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, event.ID)
	}
	if decoded.InvocationID != "inv-7" {
		t.Errorf("InvocationID = %q, want inv-7", decoded.InvocationID)
	}
	if decoded.Branch != "seq/child1" {
		t.Errorf("Branch = %q, want seq/child1", decoded.Branch)
	}
	if !decoded.TurnComplete {
		t.Error("TurnComplete lost in round trip")
	}
	if decoded.Actions.TransferToAgent != "other_agent" {
		t.Errorf("TransferToAgent = %q", decoded.Actions.TransferToAgent)
	}
	if !decoded.Actions.Escalate {
		t.Error("Escalate lost in round trip")
	}
	if decoded.Actions.StateDelta["k"] != "v" {
		t.Errorf("StateDelta[k] = %v", decoded.Actions.StateDelta["k"])
	}
	if decoded.Actions.ArtifactDelta["file.txt"] != 3 {
		t.Errorf("ArtifactDelta = %v", decoded.Actions.ArtifactDelta)
	}
	if len(decoded.LongRunningToolIDs) != 1 || decoded.LongRunningToolIDs[0] != "call_3" {
		t.Errorf("LongRunningToolIDs = %v", decoded.LongRunningToolIDs)
	}
}

// The wire field names are part of the external contract; renaming a Go
// field must not silently change them.
func TestEventJSONFieldNames(t *testing.T) {
	event := NewEvent("inv-1")
	event.Author = "a"
	event.TurnComplete = true

	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, field := range []string{"id", "invocation_id", "author", "timestamp", "partial", "turn_complete", "actions"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("wire shape is missing field %q", field)
		}
	}
}
