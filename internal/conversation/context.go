// Package conversation holds per-session dialogue state and decides whether an
// incoming question can be answered or needs a clarification first.
package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

const (
	// MaxMessageAge is how long a message stays in the rolling window.
	MaxMessageAge = time.Hour
	// MinRetained messages survive eviction regardless of age.
	MinRetained = 10
	// MaxMessages caps the window even when every message is recent.
	MaxMessages = 200
	// HealthContextTTL bounds how long aggregated values are reused in prompts.
	HealthContextTTL = time.Hour
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content, Timestamp: at}
}

// Context is the mutable state of one session. It is not safe for concurrent
// use; Session serializes access to it.
type Context struct {
	SessionID    string
	StartTime    time.Time
	LastActivity time.Time
	Messages     []Message
	// MessageCount includes messages that were later evicted.
	MessageCount     int
	HealthContext    map[string]metric.Value
	LastHealthUpdate *time.Time
	DiscussedTopics  map[string]struct{}
}

func NewContext(sessionID string, now time.Time) *Context {
	return &Context{
		SessionID:       sessionID,
		StartTime:       now,
		LastActivity:    now,
		HealthContext:   make(map[string]metric.Value),
		DiscussedTopics: make(map[string]struct{}),
	}
}

// Append adds msg and evicts stale history relative to its timestamp.
func (c *Context) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.MessageCount++
	if msg.Timestamp.After(c.LastActivity) {
		c.LastActivity = msg.Timestamp
	}
	c.Evict(msg.Timestamp)
}

// Evict drops the oldest messages beyond MaxMessages, then those older than
// MaxMessageAge, but never shrinks the window below MinRetained.
func (c *Context) Evict(now time.Time) {
	drop := 0
	if len(c.Messages) > MaxMessages {
		drop = len(c.Messages) - MaxMessages
	}
	for drop < len(c.Messages)-MinRetained && now.Sub(c.Messages[drop].Timestamp) > MaxMessageAge {
		drop++
	}
	if drop == 0 {
		return
	}
	kept := make([]Message, len(c.Messages)-drop)
	copy(kept, c.Messages[drop:])
	c.Messages = kept
}

// UpdateHealth records the latest formatted value of a metric family.
func (c *Context) UpdateHealth(key string, value metric.Value, now time.Time) {
	c.HealthContext[key] = value
	c.LastHealthUpdate = &now
	c.AddTopic(key)
}

// RelevantHealth returns the health context only while it is fresh; stale
// values are never reused.
func (c *Context) RelevantHealth(now time.Time) map[string]metric.Value {
	if c.LastHealthUpdate == nil || now.Sub(*c.LastHealthUpdate) >= HealthContextTTL {
		return nil
	}
	out := make(map[string]metric.Value, len(c.HealthContext))
	for k, v := range c.HealthContext {
		out[k] = v
	}
	return out
}

func (c *Context) AddTopic(topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	c.DiscussedTopics[topic] = struct{}{}
}

func (c *Context) Topics() []string {
	out := make([]string, 0, len(c.DiscussedTopics))
	for topic := range c.DiscussedTopics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy that can be read without holding the session.
func (c *Context) Clone() *Context {
	out := &Context{
		SessionID:       c.SessionID,
		StartTime:       c.StartTime,
		LastActivity:    c.LastActivity,
		Messages:        make([]Message, len(c.Messages)),
		MessageCount:    c.MessageCount,
		HealthContext:   make(map[string]metric.Value, len(c.HealthContext)),
		DiscussedTopics: make(map[string]struct{}, len(c.DiscussedTopics)),
	}
	for i, msg := range c.Messages {
		out.Messages[i] = msg
		if msg.Metadata != nil {
			meta := make(map[string]string, len(msg.Metadata))
			for k, v := range msg.Metadata {
				meta[k] = v
			}
			out.Messages[i].Metadata = meta
		}
	}
	for k, v := range c.HealthContext {
		out.HealthContext[k] = v
	}
	for k := range c.DiscussedTopics {
		out.DiscussedTopics[k] = struct{}{}
	}
	if c.LastHealthUpdate != nil {
		at := *c.LastHealthUpdate
		out.LastHealthUpdate = &at
	}
	return out
}

// RecentMessages returns at most limit of the newest messages, oldest first.
func (c *Context) RecentMessages(limit int) []Message {
	if limit <= 0 || len(c.Messages) <= limit {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-limit:]
}

// Summary is the lightweight record handed to the persistence collaborator.
type Summary struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	StartTime        time.Time `json:"start_time"`
	LastActivity     time.Time `json:"last_activity"`
	MessageCount     int       `json:"message_count"`
	Topics           []string  `json:"topics"`
	MetricsDiscussed []string  `json:"metrics_discussed"`
}

func (c *Context) Summary(subject string) Summary {
	metrics := make([]string, 0, len(c.HealthContext))
	for key := range c.HealthContext {
		metrics = append(metrics, key)
	}
	sort.Strings(metrics)
	return Summary{
		ID:               c.SessionID,
		Subject:          subject,
		StartTime:        c.StartTime,
		LastActivity:     c.LastActivity,
		MessageCount:     c.MessageCount,
		Topics:           c.Topics(),
		MetricsDiscussed: metrics,
	}
}

// RenderHealth formats the fresh health context one value per line for prompt
// injection. It returns "" when the context is stale or empty.
func (c *Context) RenderHealth(lang metric.Lang, now time.Time) string {
	relevant := c.RelevantHealth(now)
	if len(relevant) == 0 {
		return ""
	}
	keys := make([]string, 0, len(relevant))
	for k := range relevant {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, "- "+relevant[k].Format(lang))
	}
	return strings.Join(lines, "\n")
}
