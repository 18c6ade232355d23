package models

// AchievementDef: static config (loaded from config file at start-up)
type AchievementDef struct {
	ID          int    `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
	RoleID      string `mapstructure:"role_id" json:"role_id,omitempty"` // Discord role granted while held
}

// LevelTier is one named tier unlocked at a cumulative XP threshold.
type LevelTier struct {
	Name string `mapstructure:"name" json:"name"`
	XP   int64  `mapstructure:"xp" json:"xp"`
}

// DefaultLevels is the tier ladder used when the config file provides none.
var DefaultLevels = []LevelTier{
	{Name: "Climber", XP: 0},
	{Name: "Beginner", XP: 10},
	{Name: "Amateur", XP: 30},
	{Name: "Intermediate", XP: 60},
	{Name: "Advanced", XP: 110},
	{Name: "Expert", XP: 200},
	{Name: "Elite", XP: 360},
	{Name: "Professional", XP: 600},
	{Name: "Legendary", XP: 850},
	{Name: "Champions", XP: 1000},
	{Name: "Lunatic", XP: 1500},
}
