package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/repository"
	"gorm.io/gorm"
)

// Field is a numeric ledger column.
type Field string

const (
	FieldXP       Field = "xp"
	FieldActivity Field = "activity"
)

func (f Field) Label() string {
	if f == FieldActivity {
		return "Expedition"
	}
	return "XP"
}

// Op is a ledger mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpSet    Op = "set"
)

// ApplyDelta returns acc with op applied to field. Decrements floor at zero.
// XP add/remove also moves the activity counter by one; set never does.
func ApplyDelta(acc models.LinkedAccount, field Field, op Op, amount int64) (models.LinkedAccount, error) {
	if amount < 0 {
		return acc, fmt.Errorf("%d: %w", amount, ErrInvalidAmount)
	}
	out := acc.Clone()

	var target *int64
	switch field {
	case FieldXP:
		target = &out.XP
	case FieldActivity:
		target = &out.ActivityCount
	default:
		return acc, fmt.Errorf("unknown ledger field %q", field)
	}

	switch op {
	case OpAdd:
		*target += amount
		if field == FieldXP {
			out.ActivityCount++
		}
	case OpRemove:
		*target = max(0, *target-amount)
		if field == FieldXP {
			out.ActivityCount = max(0, out.ActivityCount-1)
		}
	case OpSet:
		*target = amount
	default:
		return acc, fmt.Errorf("unknown ledger op %q", op)
	}
	return out, nil
}

// LedgerService applies XP, expedition and achievement changes.
type LedgerService struct {
	Accounts repository.AccountRepository
	Resolver *TargetResolver
	Levels   LevelTable
	Catalog  *AchievementCatalog
	Sync     *RoleSynchronizer
	Notifier Notifier
	Spawn    Spawner

	GroupID                int64
	RequireGroupMembership bool
}

type AdjustRequest struct {
	Target Target
	Field  Field
	Op     Op
	Amount int64
	Actor  string
}

// DeltaResult describes one applied ledger change.
type DeltaResult struct {
	Account  *models.LinkedAccount
	Field    Field
	Op       Op
	Amount   int64
	Before   int64
	After    int64
	Progress Progress

	LevelChanged bool
	LeveledUp    bool
	FromTier     string
	ToTier       string
}

// Adjust resolves the target, checks group membership when required and applies the delta
// in a single read-modify-write.
func (s *LedgerService) Adjust(ctx context.Context, req AdjustRequest) (*DeltaResult, error) {
	if req.Amount < 0 {
		return nil, fmt.Errorf("%d: %w", req.Amount, ErrInvalidAmount)
	}
	acc, err := s.Resolver.ResolveGated(ctx, req.Target, s.checkMembership)
	if err != nil {
		return nil, err
	}

	var before models.LinkedAccount
	updated, err := s.Accounts.UpdateLedger(ctx, acc.ExternalID, func(cur *models.LinkedAccount) error {
		before = cur.Clone()
		next, err := ApplyDelta(*cur, req.Field, req.Op, req.Amount)
		if err != nil {
			return err
		}
		*cur = next
		return nil
	})
	if err != nil {
		return nil, ledgerError(acc.ExternalID, err)
	}

	res := &DeltaResult{
		Account:  updated,
		Field:    req.Field,
		Op:       req.Op,
		Amount:   req.Amount,
		Before:   fieldValue(&before, req.Field),
		After:    fieldValue(updated, req.Field),
		Progress: ComputeProgress(updated.XP, s.Levels),
	}
	res.LevelChanged, res.FromTier, res.ToTier = LevelUp(s.Levels, before.XP, updated.XP)
	if res.LevelChanged {
		res.LeveledUp = ComputeProgress(before.XP, s.Levels).TierIndex < res.Progress.TierIndex
	}

	log.Printf("[LEDGER] %s %s %d → %s (%d → %d) by %s", req.Op, req.Field, req.Amount, updated.ExternalUsername, res.Before, res.After, req.Actor)
	notify(s.spawner(), s.Notifier, Event{
		Kind:  EventLedger,
		Title: fmt.Sprintf("%s %s", req.Field.Label(), req.Op),
		Actor: req.Actor,
		Fields: []EventField{
			{Name: "User", Value: updated.ExternalUsername},
			{Name: "Amount", Value: strconv.FormatInt(req.Amount, 10)},
			{Name: "Before", Value: strconv.FormatInt(res.Before, 10)},
			{Name: "After", Value: strconv.FormatInt(res.After, 10)},
		},
	})
	return res, nil
}

// checkMembership is the Gate for XP and activity adjustments.
func (s *LedgerService) checkMembership(ctx context.Context, userID int64, name string) error {
	if !s.RequireGroupMembership || s.GroupID == 0 {
		return nil
	}
	in, err := s.Resolver.Identity.IsInGroup(ctx, userID, s.GroupID)
	if err != nil {
		return err
	}
	if !in {
		return fmt.Errorf("%s is not in group %d: %w", name, s.GroupID, ErrNotEligible)
	}
	return nil
}

// AchievementChange is the outcome of a grant or revoke.
type AchievementChange struct {
	Account     *models.LinkedAccount
	Achievement models.AchievementDef
	Action      SyncAction
	Changed     bool // ledger set changed
	RoleChanged bool // Discord role changed
}

func (s *LedgerService) GrantAchievement(ctx context.Context, target Target, achievementID int, actor string) (*AchievementChange, error) {
	return s.changeAchievement(ctx, target, achievementID, SyncGrant, actor)
}

func (s *LedgerService) RevokeAchievement(ctx context.Context, target Target, achievementID int, actor string) (*AchievementChange, error) {
	return s.changeAchievement(ctx, target, achievementID, SyncRevoke, actor)
}

// changeAchievement writes the set first, then syncs the role; a failed sync never undoes the write.
func (s *LedgerService) changeAchievement(ctx context.Context, target Target, achievementID int, action SyncAction, actor string) (*AchievementChange, error) {
	def, ok := s.Catalog.Lookup(achievementID)
	if !ok {
		return nil, fmt.Errorf("achievement %d: %w", achievementID, ErrUnknownAchievement)
	}
	acc, err := s.Resolver.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	changed := false
	updated, err := s.Accounts.UpdateLedger(ctx, acc.ExternalID, func(cur *models.LinkedAccount) error {
		changed = toggleAchievement(cur, achievementID, action)
		return nil
	})
	if err != nil {
		return nil, ledgerError(acc.ExternalID, err)
	}

	out := &AchievementChange{Account: updated, Achievement: def, Action: action, Changed: changed}
	out.RoleChanged = s.Sync.Sync(ctx, updated, achievementID, action)

	if changed {
		log.Printf("[LEDGER] 🏆 %s %s → %s by %s", action, def.Name, updated.ExternalUsername, actor)
		notify(s.spawner(), s.Notifier, Event{
			Kind:  EventAchievement,
			Title: fmt.Sprintf("Achievement %s", action),
			Actor: actor,
			Fields: []EventField{
				{Name: "User", Value: updated.ExternalUsername},
				{Name: "Achievement", Value: def.Name},
			},
		})
	}
	return out, nil
}

// toggleAchievement applies action to the set and reports whether it changed.
func toggleAchievement(acc *models.LinkedAccount, id int, action SyncAction) bool {
	has := acc.HasAchievement(id)
	switch action {
	case SyncGrant:
		if has {
			return false
		}
		acc.Achievements = append(acc.Achievements, id)
		return true
	case SyncRevoke:
		if !has {
			return false
		}
		kept := acc.Achievements[:0:0]
		for _, held := range acc.Achievements {
			if held != id {
				kept = append(kept, held)
			}
		}
		acc.Achievements = kept
		return true
	}
	return false
}

func fieldValue(acc *models.LinkedAccount, f Field) int64 {
	if f == FieldActivity {
		return acc.ActivityCount
	}
	return acc.XP
}

func ledgerError(externalID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("account %s: %w", externalID, ErrNotFound)
	}
	if errors.Is(err, ErrInvalidAmount) {
		return err
	}
	return fmt.Errorf("update ledger for %s: %w", externalID, err)
}

func (s *LedgerService) spawner() Spawner {
	if s.Spawn == nil {
		return GoSpawner
	}
	return s.Spawn
}
