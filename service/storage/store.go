package storage

import (
	"context"
	"time"

	"RTChat/tools/errs"
)

// The store is the "channel exists / user is a member" fact source consumed
// by the HTTP layer. The realtime router deliberately never queries it on
// joinChannel/sendMessage; authorization is trusted to have happened at the
// HTTP edge before the client was told it may join.

type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	IsEdited  bool   `json:"isEdited,omitempty"`
}

var (
	ErrChannelNotFound = errs.NewCodeError(2001, "channel not found")
	ErrUserNotFound    = errs.NewCodeError(2002, "user not found")
	ErrAlreadyMember   = errs.NewCodeError(2003, "already a member")
)

type Store interface {
	CreateChannel(ctx context.Context, ch Channel) error
	GetChannel(ctx context.Context, id string) (*Channel, error)
	ChannelExists(ctx context.Context, id string) (bool, error)

	AddMember(ctx context.Context, channelID, userID string) error
	RemoveMember(ctx context.Context, channelID, userID string) error
	IsMember(ctx context.Context, channelID, userID string) (bool, error)
	ListMembers(ctx context.Context, channelID string) ([]string, error)

	UpsertUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)

	// Bounded recent-message list per channel; a collaborator convenience,
	// not a durable event log.
	AppendMessage(ctx context.Context, m Message) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)

	// presence: which gateway node the user is on, with TTL
	SetOnline(ctx context.Context, userID, nodeID string, ttl time.Duration) error
	SetOffline(ctx context.Context, userID string) error
	LookupOnline(ctx context.Context, userID string) (nodeID string, online bool, err error)
}
