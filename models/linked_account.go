package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// LinkedAccount is the ledger row for one Roblox account, optionally linked to a Discord user.
// One row per external (Roblox) id; rows are created lazily and never deleted.
type LinkedAccount struct {
	ExternalID       string  `gorm:"primaryKey;size:32" json:"external_id"`  // Roblox user id as text
	ExternalUsername string  `gorm:"size:64;not null;index" json:"username"` // refreshed on rename
	PlatformID       *string `gorm:"size:32;uniqueIndex:idx_linked_accounts_platform_id" json:"discord_id,omitempty"`

	// Ledger
	XP            int64                    `gorm:"not null;default:0;index" json:"xp"`
	ActivityCount int64                    `gorm:"not null;default:0;index" json:"expeditions"`
	Achievements  datatypes.JSONSlice[int] `json:"achievements"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsLinked reports whether a Discord user currently owns this record.
func (a *LinkedAccount) IsLinked() bool {
	return a.PlatformID != nil && *a.PlatformID != ""
}

// LinkedTo returns the Discord id or "" when unlinked.
func (a *LinkedAccount) LinkedTo() string {
	if a.PlatformID == nil {
		return ""
	}
	return *a.PlatformID
}

func (a *LinkedAccount) HasAchievement(id int) bool {
	return slices.Contains(a.Achievements, id)
}

// NormalizeAchievements drops duplicate ids while keeping first-seen order.
func (a *LinkedAccount) NormalizeAchievements() {
	if len(a.Achievements) == 0 {
		return
	}
	seen := make(map[int]struct{}, len(a.Achievements))
	out := make([]int, 0, len(a.Achievements))
	for _, id := range a.Achievements {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	a.Achievements = out
}

// Clone returns a deep copy so callers can mutate ledger fields without aliasing.
func (a LinkedAccount) Clone() LinkedAccount {
	out := a
	if a.PlatformID != nil {
		id := *a.PlatformID
		out.PlatformID = &id
	}
	if a.Achievements != nil {
		out.Achievements = append(datatypes.JSONSlice[int]{}, a.Achievements...)
	}
	return out
}
