package services

import (
	"errors"
	"fmt"

	"github.com/fanzyb/roblox-mooncrest/models"
)

// LevelTable is an immutable, validated tier ladder sorted by ascending threshold.
type LevelTable struct {
	tiers []models.LevelTier
}

// NewLevelTable validates tiers: non-empty, first threshold 0, strictly ascending, named.
func NewLevelTable(tiers []models.LevelTier) (LevelTable, error) {
	if len(tiers) == 0 {
		return LevelTable{}, errors.New("level table is empty")
	}
	if tiers[0].XP != 0 {
		return LevelTable{}, fmt.Errorf("first level %q must start at 0 XP, got %d", tiers[0].Name, tiers[0].XP)
	}
	for i, t := range tiers {
		if t.Name == "" {
			return LevelTable{}, fmt.Errorf("level %d has no name", i)
		}
		if i > 0 && t.XP <= tiers[i-1].XP {
			return LevelTable{}, fmt.Errorf("level %q (%d XP) must be above %q (%d XP)", t.Name, t.XP, tiers[i-1].Name, tiers[i-1].XP)
		}
	}
	return LevelTable{tiers: append([]models.LevelTier(nil), tiers...)}, nil
}

// MustLevelTable is NewLevelTable for static tables known to be valid.
func MustLevelTable(tiers []models.LevelTier) LevelTable {
	t, err := NewLevelTable(tiers)
	if err != nil {
		panic(err)
	}
	return t
}

func (t LevelTable) Tiers() []models.LevelTier {
	return append([]models.LevelTier(nil), t.tiers...)
}

func (t LevelTable) Len() int { return len(t.tiers) }

// Progress is the derived rank view of an XP total.
type Progress struct {
	TierName      string `json:"level"`
	TierIndex     int    `json:"level_index"`
	PercentToNext int    `json:"progress_percent"`
	Remaining     int64  `json:"xp_remaining"`
	NextTierName  string `json:"next_level,omitempty"`
	MaxLevel      bool   `json:"max_level"`
	RemainderText string `json:"next_level_text"`
}

// ComputeProgress places xp on the ladder. The current tier is the last one whose threshold is <= xp.
func ComputeProgress(xp int64, table LevelTable) Progress {
	if len(table.tiers) == 0 {
		return Progress{TierName: "N/A", RemainderText: "No levels configured"}
	}
	if xp < 0 {
		xp = 0
	}
	idx := 0
	for i, tier := range table.tiers {
		if xp < tier.XP {
			break
		}
		idx = i
	}
	cur := table.tiers[idx]
	if idx == len(table.tiers)-1 {
		return Progress{
			TierName:      cur.Name,
			TierIndex:     idx,
			PercentToNext: 100,
			MaxLevel:      true,
			RemainderText: "Max level reached!",
		}
	}

	next := table.tiers[idx+1]
	percent := int((xp - cur.XP) * 100 / (next.XP - cur.XP))
	percent = max(0, min(100, percent))
	remaining := max(0, next.XP-xp)
	return Progress{
		TierName:      cur.Name,
		TierIndex:     idx,
		PercentToNext: percent,
		Remaining:     remaining,
		NextTierName:  next.Name,
		RemainderText: fmt.Sprintf("%d XP to %s", remaining, next.Name),
	}
}

// LevelUp compares the tiers of two XP totals.
func LevelUp(table LevelTable, oldXP, newXP int64) (changed bool, from, to string) {
	from = ComputeProgress(oldXP, table).TierName
	to = ComputeProgress(newXP, table).TierName
	return from != to, from, to
}
