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

// Package domain holds the persistent entities of the search and conversation
// core: users, collections, pipeline configuration, prompt templates, LLM
// parameters/providers/models, and conversation sessions/messages/summaries.
//
// Entities are plain structs with explicit validation methods rather than
// struct tags driving framework magic, matching the rest of this module's
// config and reasoning packages.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CollectionStatus is the lifecycle status of a Collection.
type CollectionStatus string

const (
	CollectionCreated    CollectionStatus = "created"
	CollectionProcessing CollectionStatus = "processing"
	CollectionCompleted  CollectionStatus = "completed"
	CollectionError      CollectionStatus = "error"
)

// User owns templates, parameter sets, and pipeline configs.
type User struct {
	ID         uuid.UUID
	ExternalID string
	Email      string
	Role       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Collection groups indexed documents behind a single vector-store handle.
type Collection struct {
	ID             uuid.UUID
	Name           string
	VectorHandle   string // opaque, unique in the vector store
	Private        bool
	MemberUserIDs  []uuid.UUID
	Status         CollectionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RetrieverKind selects how a pipeline retrieves candidate passages.
type RetrieverKind string

const (
	RetrieverVector  RetrieverKind = "vector"
	RetrieverKeyword RetrieverKind = "keyword"
	RetrieverHybrid  RetrieverKind = "hybrid"
)

// PipelineConfig binds a retrieval+generation strategy to an owner and,
// optionally, a single collection.
type PipelineConfig struct {
	ID                 uuid.UUID
	CollectionID       *uuid.UUID // nil = applies across collections for this owner
	OwnerID            uuid.UUID
	ChunkingStrategy   string
	EmbeddingModelID   uuid.UUID
	Retriever          RetrieverKind
	ContextStrategy    string
	MaxContextLength   int
	Timeout            time.Duration
	ConfigMetadata     map[string]any
	ProviderID         uuid.UUID
	IsDefault          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TemplateType distinguishes the prompt templates this system renders.
type TemplateType string

const (
	TemplateRAGQuery           TemplateType = "RAG_QUERY"
	TemplateQuestionGeneration TemplateType = "QUESTION_GENERATION"
	TemplateReranking          TemplateType = "RERANKING"
	TemplatePodcastGeneration  TemplateType = "PODCAST_GENERATION"
)

// VariableSpec is the validation schema for a single template placeholder.
type VariableSpec struct {
	Description string
	Type        string // "string", "number", "list" - informational, validated loosely
	MinLength   int
}

// PromptTemplate stores a renderable prompt with named placeholders.
type PromptTemplate struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	Name             string
	Type             TemplateType
	SystemPrompt     string
	TemplateFormat   string // contains {var} placeholders
	InputVariables   map[string]VariableSpec
	Examples         []string
	MaxContextLength int    // 0 = unset
	ContextStrategy  string // "" = unset, defers to the pipeline's ContextStrategy
	StopSequences    []string
	IsDefault        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LLMParameters is a named, reusable generation parameter set.
type LLMParameters struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	Name               string
	MaxNewTokens       int
	Temperature        float64 // [0, 2]
	TopK               int     // >= 0
	TopP               float64 // [0, 1]
	RepetitionPenalty  *float64
	IsDefault          bool
}

// Validate checks LLMParameters against the bounds in the data model.
func (p *LLMParameters) Validate() error {
	if p.Temperature < 0 || p.Temperature > 2 {
		return errOutOfRange("temperature", "[0,2]")
	}
	if p.TopK < 0 {
		return errOutOfRange("top_k", "[0,inf)")
	}
	if p.TopP < 0 || p.TopP > 1 {
		return errOutOfRange("top_p", "[0,1]")
	}
	return nil
}

func errOutOfRange(field, rng string) error {
	return &ValidationFieldError{Field: field, Rule: rng}
}

// ValidationFieldError reports which field of an entity failed a bound check.
type ValidationFieldError struct {
	Field string
	Rule  string
}

func (e *ValidationFieldError) Error() string {
	return e.Field + " must be in " + e.Rule
}

// LLMModelType distinguishes generation models from embedding models.
type LLMModelType string

const (
	ModelGeneration LLMModelType = "generation"
	ModelEmbedding  LLMModelType = "embedding"
)

// LLMProvider is a configured external vendor endpoint.
type LLMProvider struct {
	ID          uuid.UUID
	Name        string
	BaseURL     string
	Credential  string // API key / token material; never logged
	OrgID       string
	ProjectID   string
	Active      bool
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LLMModel is a specific model offered by an LLMProvider.
type LLMModel struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	Model           string
	Type            LLMModelType
	Timeout         time.Duration
	MaxRetries      int
	BatchSize       int
	RetryDelay      time.Duration
	ConcurrencyLimit int
	Stream          bool
	RateLimit       int
	IsDefault       bool
	Active          bool
}

// SessionStatus is the Conversation Manager's state machine status.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionPaused   SessionStatus = "paused"
	SessionArchived SessionStatus = "archived"
	SessionExpired  SessionStatus = "expired"
)

// ConversationSession is a long-running conversational container.
type ConversationSession struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	CollectionID       uuid.UUID
	Name              string
	Status            SessionStatus
	ContextWindowSize int // tokens
	MaxMessages       int
	Pinned            bool
	SessionMetadata   map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MessageRole is who produced a ConversationMessage.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType further classifies a ConversationMessage's intent.
type MessageType string

const (
	MessageQuestion     MessageType = "question"
	MessageAnswer       MessageType = "answer"
	MessageFollowUp     MessageType = "follow_up"
	MessageClarification MessageType = "clarification"
	MessageSummary      MessageType = "summary"
	MessageSystemNotice MessageType = "system_notice"
)

// ConversationMessage is an immutable entry in a session's history.
type ConversationMessage struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	Role          MessageRole
	Type          MessageType
	Content       string
	TokenCount    *int
	ExecutionTime *time.Duration
	Metadata      map[string]any
	CreatedAt     time.Time
}

// SummaryStrategy names one of the four summarization strategies in §4.H.
type SummaryStrategy string

const (
	StrategyRecentPlusSummary SummaryStrategy = "recent_plus_summary"
	StrategyKeyPointsOnly     SummaryStrategy = "key_points_only"
	StrategyTopicBased        SummaryStrategy = "topic_based"
	StrategyHierarchical      SummaryStrategy = "hierarchical"
)

// ConversationSummary compresses a prefix of a session's messages.
type ConversationSummary struct {
	ID                     uuid.UUID
	SessionID              uuid.UUID
	Summary                string
	SummarizedMessageCount int
	TokensSaved            int
	KeyTopics              []string
	ImportantDecisions     []string
	UnresolvedQuestions    []string
	Strategy               SummaryStrategy
	CreatedAt              time.Time
}
