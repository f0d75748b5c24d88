// Package memory keeps bounded per-session conversation history.
package memory

import (
	"strings"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Memory is one session's history. When bounded, it keeps at most the most
// recent maxPairs*2 messages.
type Memory struct {
	mu       sync.Mutex
	maxPairs int
	messages []Message
}

// New creates a Memory. maxPairs <= 0 means unbounded.
func New(maxPairs int) *Memory {
	if maxPairs < 0 {
		maxPairs = 0
	}
	return &Memory{maxPairs: maxPairs}
}

func (m *Memory) AddUser(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(Message{Role: RoleUser, Content: content})
}

func (m *Memory) AddAssistant(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(Message{Role: RoleAssistant, Content: content})
}

// AddExchange records a question and its answer together so concurrent
// writers cannot interleave between them.
func (m *Memory) AddExchange(user, assistant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(Message{Role: RoleUser, Content: user})
	m.appendLocked(Message{Role: RoleAssistant, Content: assistant})
}

func (m *Memory) appendLocked(msg Message) {
	m.messages = append(m.messages, msg)
	if m.maxPairs == 0 {
		return
	}
	if limit := m.maxPairs * 2; len(m.messages) > limit {
		m.messages = append(m.messages[:0:0], m.messages[len(m.messages)-limit:]...)
	}
}

// Messages returns a copy of the history, oldest first.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// String renders the history as "Human:" and "AI:" lines.
func (m *Memory) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.messages))
	for i, msg := range m.messages {
		prefix := "Human: "
		if msg.Role == RoleAssistant {
			prefix = "AI: "
		}
		lines[i] = prefix + msg.Content
	}
	return strings.Join(lines, "\n")
}

// Clear empties the history. The bound is kept.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *Memory) MaxPairs() int { return m.maxPairs }
