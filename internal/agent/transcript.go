package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn roles. Tool turns carry the raw tool output that informed the
// assistant turn that follows them.
const (
	RoleUser      = "user"
	RoleTool      = "tool"
	RoleAssistant = "assistant"
)

type ConversationTurn struct {
	ID        string
	Role      string
	Content   string
	Tool      string // qualified tool name, tool turns only
	Timestamp time.Time
}

// Transcript is the append-only conversation history. Turns are never
// rewritten or removed once added.
type Transcript struct {
	mu    sync.Mutex
	turns []ConversationTurn
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) append(role, content, tool string) ConversationTurn {
	turn := ConversationTurn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Tool:      tool,
		Timestamp: time.Now(),
	}
	t.mu.Lock()
	t.turns = append(t.turns, turn)
	t.mu.Unlock()
	return turn
}

func (t *Transcript) AddUser(content string) ConversationTurn {
	return t.append(RoleUser, content, "")
}

func (t *Transcript) AddTool(tool, content string) ConversationTurn {
	return t.append(RoleTool, content, tool)
}

func (t *Transcript) AddAssistant(content string) ConversationTurn {
	return t.append(RoleAssistant, content, "")
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}

// Turns returns a copy of the history.
func (t *Transcript) Turns() []ConversationTurn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ConversationTurn, len(t.turns))
	copy(out, t.turns)
	return out
}
