// handlers/interactions.go
package handlers

import (
	"context"
	"time"

	"github.com/fanzyb/roblox-mooncrest/services"
)

// Interaction is one parsed Discord interaction. The set of implementations is closed:
// every variant dispatches to its own Handler method, so adding a variant without
// handling it fails to compile.
type Interaction interface {
	Accept(ctx context.Context, h Handler) Reply
	Meta() Base
}

// Handler has one method per interaction variant.
type Handler interface {
	HandleXP(ctx context.Context, c XPCommand) Reply
	HandleActivity(ctx context.Context, c ActivityCommand) Reply
	HandleLink(ctx context.Context, c LinkCommand) Reply
	HandleVerifyAccount(ctx context.Context, c VerifyAccountCommand) Reply
	HandleVerifySetup(ctx context.Context, c VerifySetupCommand) Reply
	HandleRank(ctx context.Context, c RankCommand) Reply
	HandleLeaderboard(ctx context.Context, c LeaderboardCommand) Reply
	HandleHallOfFame(ctx context.Context, c HallOfFameCommand) Reply
	HandleListReward(ctx context.Context, c ListRewardCommand) Reply
	HandleReward(ctx context.Context, c RewardCommand) Reply
	HandleDebug(ctx context.Context, c DebugCommand) Reply
	HandleVerifyOpen(ctx context.Context, c VerifyOpenButton) Reply
	HandleVerifyModal(ctx context.Context, c VerifyModalSubmit) Reply
	HandleLeaderboardButton(ctx context.Context, c LeaderboardButton) Reply
	HandleRewardSelect(ctx context.Context, c RewardSelect) Reply
}

// Base is shared by every variant.
type Base struct {
	Caller     services.Caller
	TraceID    string
	ReceivedAt time.Time
}

func (b Base) Meta() Base { return b }

// LedgerCommand is /xp or /expo with add|remove|set.
type LedgerCommand struct {
	Base
	Op     services.Op
	Target services.Target
	Amount int64
}

type XPCommand struct{ LedgerCommand }

type ActivityCommand struct{ LedgerCommand }

type LinkAction string

const (
	LinkInitiate LinkAction = "initiate"
	LinkMember   LinkAction = "member"
	LinkRemove   LinkAction = "remove"
	LinkStatus   LinkAction = "status"
)

// LinkCommand is the admin /link group.
type LinkCommand struct {
	Base
	Action   LinkAction
	Username string
	MemberID string // only for member
}

type VerifyAccountCommand struct {
	Base
	Username string
}

// VerifySetupCommand posts the verification panel.
type VerifySetupCommand struct{ Base }

type RankCommand struct {
	Base
	Target services.Target
}

type LeaderboardCommand struct {
	Base
	Metric services.Metric
	Page   int
}

type HallOfFameCommand struct{ Base }

type ListRewardCommand struct{ Base }

// RewardCommand opens the achievement select menu for a target.
type RewardCommand struct {
	Base
	Action services.SyncAction
	Target services.Target
}

type DebugCommand struct{ Base }

// VerifyOpenButton is the panel button that opens the username modal.
type VerifyOpenButton struct{ Base }

type VerifyModalSubmit struct {
	Base
	Username string
}

type LeaderboardButton struct {
	Base
	Token services.LeaderboardToken
}

type RewardSelect struct {
	Base
	Action        services.SyncAction
	ExternalID    string
	AchievementID int
}

func (c XPCommand) Accept(ctx context.Context, h Handler) Reply { return h.HandleXP(ctx, c) }
func (c ActivityCommand) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleActivity(ctx, c)
}
func (c LinkCommand) Accept(ctx context.Context, h Handler) Reply { return h.HandleLink(ctx, c) }
func (c VerifyAccountCommand) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleVerifyAccount(ctx, c)
}
func (c VerifySetupCommand) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleVerifySetup(ctx, c)
}
func (c RankCommand) Accept(ctx context.Context, h Handler) Reply { return h.HandleRank(ctx, c) }
func (c LeaderboardCommand) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleLeaderboard(ctx, c)
}
func (c HallOfFameCommand) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleHallOfFame(ctx, c)
}
func (c ListRewardCommand) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleListReward(ctx, c)
}
func (c RewardCommand) Accept(ctx context.Context, h Handler) Reply { return h.HandleReward(ctx, c) }
func (c DebugCommand) Accept(ctx context.Context, h Handler) Reply  { return h.HandleDebug(ctx, c) }
func (c VerifyOpenButton) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleVerifyOpen(ctx, c)
}
func (c VerifyModalSubmit) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleVerifyModal(ctx, c)
}
func (c LeaderboardButton) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleLeaderboardButton(ctx, c)
}
func (c RewardSelect) Accept(ctx context.Context, h Handler) Reply {
	return h.HandleRewardSelect(ctx, c)
}
