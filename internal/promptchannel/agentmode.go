package promptchannel

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AgentMode is the file-based prompt channel: it writes a request to an
// output path and polls an input path for the first line of a response.
// It is the only prompt channel that can run without a terminal attached,
// which is what lets `taskline agent-mode` drive a program from another
// process.
type AgentMode struct {
	OutputPath   string
	InputPath    string
	PollInterval time.Duration

	// Session is a token identifying this agent-mode run to whatever
	// process is reading OutputPath/InputPath, stamped once per driver so
	// a responder juggling several concurrent sessions against shared
	// well-known paths can tell which request a given answer belongs to.
	Session string

	// Screen returns whatever the caller wants reported as the "output"
	// field of the written request — typically the interpreter's
	// accumulated print buffer at the moment of the prompt.
	Screen func() string
}

// NewAgentMode builds a driver over the conventional paths, falling back
// to /tmp/agent_output and /tmp/agent_input when empty, with a freshly
// minted session token.
func NewAgentMode(outputPath, inputPath string, screen func() string) *AgentMode {
	if outputPath == "" {
		outputPath = "/tmp/agent_output"
	}
	if inputPath == "" {
		inputPath = "/tmp/agent_input"
	}
	return &AgentMode{
		OutputPath:   outputPath,
		InputPath:    inputPath,
		PollInterval: 100 * time.Millisecond,
		Session:      uuid.NewString(),
		Screen:       screen,
	}
}

type agentRequest struct {
	Type    string            `json:"type"`
	Session string            `json:"session"`
	Output  string            `json:"output"`
	Prompt  string            `json:"prompt,omitempty"`
	Choices map[string]string `json:"choices,omitempty"`
}

func (a *AgentMode) screen() string {
	if a.Screen == nil {
		return ""
	}
	return a.Screen()
}

func (a *AgentMode) write(req agentRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return os.WriteFile(a.OutputPath, data, 0644)
}

// readAnswer polls InputPath until it exists and has content, then returns
// its first line with the file removed so stale answers aren't reread.
func (a *AgentMode) readAnswer(ctx context.Context) (string, error) {
	interval := a.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		data, err := os.ReadFile(a.InputPath)
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			os.Remove(a.InputPath)
			line := strings.SplitN(string(data), "\n", 2)[0]
			return strings.TrimRight(line, "\r"), nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ErrCancelled
		}
	}
}

func (a *AgentMode) UserInput(ctx context.Context, prompt string) (string, error) {
	if err := a.write(agentRequest{Type: "user_input", Session: a.Session, Output: a.screen(), Prompt: prompt}); err != nil {
		return "", err
	}
	return a.readAnswer(ctx)
}

func (a *AgentMode) UserChoice(ctx context.Context, description string, options []string) (string, error) {
	choices := make(map[string]string, len(options))
	keys := choiceKeysForAgentMode(len(options))
	for i, opt := range options {
		choices[keys[i]] = opt
	}
	req := agentRequest{Type: "user_choice", Session: a.Session, Output: a.screen(), Prompt: description, Choices: choices}
	if err := a.write(req); err != nil {
		return "", err
	}
	return a.readAnswer(ctx)
}

// choiceKeysForAgentMode mirrors internal/taskrun's choiceKeys without an
// import cycle (taskrun depends on promptchannel, not the reverse).
func choiceKeysForAgentMode(n int) []string {
	keys := make([]string, n)
	if n <= 9 {
		for i := 0; i < n; i++ {
			keys[i] = string(rune('1' + i))
		}
		return keys
	}
	for i := 0; i < n; i++ {
		if i < 26 {
			keys[i] = string(rune('a' + i))
			continue
		}
		j := i - 26
		keys[i] = string(rune('a'+j/26)) + string(rune('a'+j%26))
	}
	return keys
}
