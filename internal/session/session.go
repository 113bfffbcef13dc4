// Package session discovers earlier worker CLI sessions on disk so a
// new plan can be fed a summary of what already happened in this
// project. Collaborator only: execution never depends on it.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultMaxMessages = 50

// Manager locates the session transcripts belonging to one project
// directory.
type Manager struct {
	SessionDir string
	ProjectDir string
}

func NewManager(projectDir string) *Manager {
	home, _ := os.UserHomeDir()
	return &Manager{
		SessionDir: filepath.Join(home, ".codex", "sessions"),
		ProjectDir: projectDir,
	}
}

// FindProjectSessions returns this project's session files, newest
// first. A session belongs to the project when its transcript carries
// the project directory as its recorded working directory.
func (m *Manager) FindProjectSessions() ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(m.SessionDir, "*.jsonl"))
	if err != nil {
		return nil, err
	}

	marker := fmt.Sprintf("<cwd>%s</cwd>", m.ProjectDir)
	var sessions []string
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), marker) {
			sessions = append(sessions, path)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return mtime(sessions[i]).After(mtime(sessions[j]))
	})
	return sessions, nil
}

// Latest returns the most recent session file for this project.
func (m *Manager) Latest() (string, bool) {
	sessions, err := m.FindProjectSessions()
	if err != nil || len(sessions) == 0 {
		return "", false
	}
	return sessions[0], true
}

// ContextSummary extracts the tail of a session's conversation as
// plain text suitable for a step's context field. Long messages are
// truncated; malformed lines are skipped.
func (m *Manager) ContextSummary(path string, maxMessages int) (string, error) {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	var messages []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry struct {
			Type    string `json:"type"`
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Type != "message" || entry.Content == "" {
			continue
		}
		if entry.Role != "user" && entry.Role != "assistant" {
			continue
		}
		content := entry.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		messages = append(messages, entry.Role+": "+content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}

	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	if len(messages) == 0 {
		return "", nil
	}
	return "Previous session context:\n" + strings.Join(messages, "\n"), nil
}

func mtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
