package services

import (
	"context"
	"time"
)

// RobloxUser is the identity lookup result.
type RobloxUser struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// GroupInfo is the gating group's public metadata.
type GroupInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	MemberCount int64  `json:"memberCount"`
}

// IdentityProvider resolves Roblox identities. Absence is (nil, nil) or false;
// transport and parse failures wrap ErrUpstreamUnavailable.
type IdentityProvider interface {
	ResolveUsername(ctx context.Context, username string) (*RobloxUser, error)
	AvatarURL(ctx context.Context, userID int64) (string, error)
	IsInGroup(ctx context.Context, userID, groupID int64) (bool, error)
	GroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error)
}

// RoleManager grants and revokes Discord roles on guild members.
type RoleManager interface {
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// EventKind selects the log channel a notification goes to.
type EventKind string

const (
	EventLink        EventKind = "link"
	EventLedger      EventKind = "ledger"
	EventAchievement EventKind = "achievement"
)

// Event is a best-effort audit notification.
type Event struct {
	ID        string       `json:"id"`
	Kind      EventKind    `json:"kind"`
	Title     string       `json:"title"`
	Fields    []EventField `json:"fields"`
	Actor     string       `json:"actor,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type EventField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Notifier posts events to the configured log channels.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }
