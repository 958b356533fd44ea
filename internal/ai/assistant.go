package ai

import (
	"context"
	"errors"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history. Messages are never
// modified after they have been appended to a history.
type Message struct {
	Role            Role            `json:"role"`
	Content         string          `json:"content"`
	Recommendations *Recommendation `json:"recommendations,omitempty"`
	Suggestions     []string        `json:"suggestions,omitempty"`
}

// Pick is a recommended technology for a single category.
type Pick struct {
	Name         string   `mapstructure:"name" json:"name"`
	Reason       string   `mapstructure:"reason" json:"reason"`
	Alternatives []string `mapstructure:"alternatives" json:"alternatives"`
}

// Recommendation is the structured stack proposal of an assistant reply.
type Recommendation struct {
	Frontend *Pick  `mapstructure:"frontend" json:"frontend,omitempty"`
	Backend  *Pick  `mapstructure:"backend" json:"backend,omitempty"`
	Database *Pick  `mapstructure:"database" json:"database,omitempty"`
	Hosting  *Pick  `mapstructure:"hosting" json:"hosting,omitempty"`
	Summary  string `mapstructure:"summary" json:"summary,omitempty"`
	FollowUp string `mapstructure:"followUp" json:"followUp,omitempty"`
}

// Empty reports whether the recommendation carries no information.
func (r *Recommendation) Empty() bool {
	return r == nil || (r.Frontend == nil && r.Backend == nil && r.Database == nil &&
		r.Hosting == nil && r.Summary == "" && r.FollowUp == "")
}

// ErrEmptyReply is returned by transports when the provider answered with no text.
var ErrEmptyReply = errors.New("provider returned empty response")

// Assistant produces one raw assistant reply for the full conversation history.
type Assistant interface {
	Reply(ctx context.Context, history []Message) (string, error)
	Model() string
}

// Model describes a model a provider can serve.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelLister lists the chat models available to the configured credentials.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}
