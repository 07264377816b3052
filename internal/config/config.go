// Package config holds taskline's own runtime settings — the chat
// endpoint, default agent-mode paths, the inserts directory, and logging —
// merged from
// a user-level and a project-level file the way internal/config.Manager
// layers userConfig/projectConfig in the teacher, plus an fsnotify watch
// for `taskline agent-mode --watch`.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is taskline's merged runtime configuration.
type Config struct {
	ChatBaseURL   string `yaml:"chat_base_url,omitempty"`
	ChatAPIKey    string `yaml:"chat_api_key,omitempty"`
	ChatModel     string `yaml:"chat_model,omitempty"`
	AgentOutput   string `yaml:"agent_output,omitempty"`
	AgentInput    string `yaml:"agent_input,omitempty"`
	InsertsDir    string `yaml:"inserts_dir,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
	LogFile       string `yaml:"log_file,omitempty"`
}

// Manager loads and merges the user- and project-level config files,
// project taking precedence field-by-field.
type Manager struct {
	user    *Config
	project *Config
	merged  *Config
}

func NewManager() *Manager {
	return &Manager{user: &Config{}, project: &Config{}, merged: &Config{}}
}

// Load reads ~/.config/taskline/config.yaml and <projectDir>/.taskline/config.yaml,
// tolerating either being absent, then merges them.
func (m *Manager) Load(userConfigDir, projectDir string) error {
	if err := loadYAML(filepath.Join(userConfigDir, "config.yaml"), m.user); err != nil {
		return err
	}
	if err := loadYAML(filepath.Join(projectDir, ".taskline", "config.yaml"), m.project); err != nil {
		return err
	}
	m.merge()
	return nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (m *Manager) merge() {
	m.merged = &Config{
		ChatBaseURL: str(m.project.ChatBaseURL, m.user.ChatBaseURL, "http://localhost:8080"),
		ChatAPIKey:  str(m.project.ChatAPIKey, m.user.ChatAPIKey, "unused"),
		ChatModel:   str(m.project.ChatModel, m.user.ChatModel, ""),
		AgentOutput: str(m.project.AgentOutput, m.user.AgentOutput, "/tmp/agent_output"),
		AgentInput:  str(m.project.AgentInput, m.user.AgentInput, "/tmp/agent_input"),
		InsertsDir:  str(m.project.InsertsDir, m.user.InsertsDir, ""),
		LogLevel:    str(m.project.LogLevel, m.user.LogLevel, "info"),
		LogFile:     str(m.project.LogFile, m.user.LogFile, ""),
	}
}

func str(project, user, def string) string {
	if project != "" {
		return project
	}
	if user != "" {
		return user
	}
	return def
}

func (m *Manager) Get() *Config { return m.merged }

// UserConfigDir returns ~/.config/taskline.
func UserConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskline"), nil
}

// ProjectDir walks up from the current directory looking for a
// .taskline or .git directory, falling back to the current directory.
func ProjectDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".taskline")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd, nil
		}
		dir = parent
	}
}
