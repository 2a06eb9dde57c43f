package config

// ChatMode controls how the model may use knowledge outside the supplied
// context.
type ChatMode string

const (
	// ModeChat lets the model blend prior knowledge with retrieved context.
	ModeChat ChatMode = "chat"
	// ModeQuery restricts the model to the supplied context and makes it
	// decline when no relevant context survives budgeting.
	ModeQuery ChatMode = "query"
)

// Workspace is the read-only per-workspace configuration surface the core
// consumes. It is owned and persisted elsewhere; the core only reads it.
type Workspace struct {
	ID                  string   `yaml:"id" json:"id"`
	SystemPrompt        string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	ChatMode            ChatMode `yaml:"chat_mode" json:"chat_mode"`
	TopN                int      `yaml:"top_n" json:"top_n"`
	SimilarityThreshold float64  `yaml:"similarity_threshold" json:"similarity_threshold"`
	UseHybridSearch     bool     `yaml:"use_hybrid_search" json:"use_hybrid_search"`
	UseWebSearch        bool     `yaml:"use_web_search" json:"use_web_search"`
	ContextTokens       int      `yaml:"context_tokens" json:"context_tokens"`
	HistoryRatio        float64  `yaml:"history_ratio" json:"history_ratio"`
	SystemRatio         float64  `yaml:"system_ratio" json:"system_ratio"`
	UserRatio           float64  `yaml:"user_ratio" json:"user_ratio"`
}

// DefaultWorkspace returns the settings new workspaces start with.
func DefaultWorkspace(id string) Workspace {
	return Workspace{
		ID:                  id,
		ChatMode:            ModeChat,
		TopN:                5,
		SimilarityThreshold: 0.25,
		UseHybridSearch:     true,
		UseWebSearch:        false,
		ContextTokens:       128000,
		HistoryRatio:        0.7,
		SystemRatio:         0.15,
		UserRatio:           0.15,
	}
}
