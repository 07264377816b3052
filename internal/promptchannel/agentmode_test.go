package promptchannel

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAgentModeUserInputWritesSessionAndReadsAnswer(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "agent_output")
	inputPath := filepath.Join(dir, "agent_input")

	a := NewAgentMode(outputPath, inputPath, func() string { return "screen text" })
	if a.Session == "" {
		t.Fatal("NewAgentMode left Session empty")
	}
	a.PollInterval = time.Millisecond

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = os.WriteFile(inputPath, []byte("hello\n"), 0644)
	}()

	answer, err := a.UserInput(context.Background(), "what's your name?")
	if err != nil {
		t.Fatalf("UserInput returned error: %v", err)
	}
	if answer != "hello" {
		t.Errorf("answer = %q, want %q", answer, "hello")
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("reading output path: %v", err)
	}
	var req agentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("unmarshal written request: %v", err)
	}
	if req.Session != a.Session {
		t.Errorf("written session = %q, want %q", req.Session, a.Session)
	}
	if req.Type != "user_input" || req.Prompt != "what's your name?" || req.Output != "screen text" {
		t.Errorf("unexpected request: %+v", req)
	}
}
