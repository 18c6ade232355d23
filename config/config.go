package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/spf13/viper"
)

// Config is the full bot configuration.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Discord      DiscordConfig           `mapstructure:"discord"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Roblox       RobloxConfig            `mapstructure:"roblox"`
	Redis        RedisConfig             `mapstructure:"redis"`
	HTTP         HTTPConfig              `mapstructure:"http"`
	Roles        RolesConfig             `mapstructure:"roles"`
	Channels     ChannelsConfig          `mapstructure:"channels"`
	Ledger       LedgerConfig            `mapstructure:"ledger"`
	Leaderboard  LeaderboardConfig       `mapstructure:"leaderboard"`
	Presence     PresenceConfig          `mapstructure:"presence"`
	Backup       BackupConfig            `mapstructure:"backup"`
	Levels       []models.LevelTier      `mapstructure:"levels"`
	Achievements []models.AchievementDef `mapstructure:"achievements"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type DiscordConfig struct {
	Token         string `mapstructure:"token"`
	ApplicationID string `mapstructure:"application_id"`
	GuildID       string `mapstructure:"guild_id"`
	EmbedColor    int    `mapstructure:"embed_color"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN    string `mapstructure:"dsn"`
}

type RobloxConfig struct {
	GroupID          int64         `mapstructure:"group_id"`
	UsersBaseURL     string        `mapstructure:"users_base_url"`
	ThumbnailBaseURL string        `mapstructure:"thumbnails_base_url"`
	GroupsBaseURL    string        `mapstructure:"groups_base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	LookupTTL time.Duration `mapstructure:"lookup_ttl"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	APIToken string `mapstructure:"api_token"`
}

// RolesConfig lists the Discord role ids allowed to run each admin command family.
// Members with the Administrator permission are always allowed.
type RolesConfig struct {
	XPManagers     []string `mapstructure:"xp_managers"`
	RewardManagers []string `mapstructure:"reward_managers"`
	LinkManagers   []string `mapstructure:"link_managers"`
	DebugManagers  []string `mapstructure:"debug_managers"`
	LinkedRoleID   string   `mapstructure:"linked_role_id"`
}

type ChannelsConfig struct {
	XPLog     string `mapstructure:"xp_log"`
	RewardLog string `mapstructure:"reward_log"`
	LinkLog   string `mapstructure:"link_log"`
}

type LedgerConfig struct {
	RequireGroupMembership bool `mapstructure:"require_group_membership"`
}

type LeaderboardConfig struct {
	PageSize  int           `mapstructure:"page_size"`
	ButtonTTL time.Duration `mapstructure:"button_ttl"`
}

type PresenceConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// BackupConfig configures periodic ledger exports to Cloudflare R2.
type BackupConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	AccountID       string        `mapstructure:"account_id"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	AccessKeySecret string        `mapstructure:"access_key_secret"`
	Bucket          string        `mapstructure:"bucket"`
	CDNBaseURL      string        `mapstructure:"cdn_base_url"`
}

// Load reads defaults, then the config file (if any), then environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MOONCREST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("⚠️  No config file found, using defaults and environment")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Printf("📄 Loaded config from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Levels) == 0 {
		cfg.Levels = append([]models.LevelTier(nil), models.DefaultLevels...)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "mooncrest")

	v.SetDefault("discord.embed_color", 0x5865F2)

	v.SetDefault("database.driver", "postgres")

	v.SetDefault("roblox.users_base_url", "https://users.roblox.com")
	v.SetDefault("roblox.thumbnails_base_url", "https://thumbnails.roblox.com")
	v.SetDefault("roblox.groups_base_url", "https://groups.roblox.com")
	v.SetDefault("roblox.timeout", 10*time.Second)

	v.SetDefault("redis.lookup_ttl", 10*time.Minute)

	v.SetDefault("ledger.require_group_membership", true)

	v.SetDefault("leaderboard.page_size", 10)
	v.SetDefault("leaderboard.button_ttl", time.Minute)

	v.SetDefault("presence.enabled", true)
	v.SetDefault("presence.interval", 10*time.Minute)

	v.SetDefault("backup.enabled", false)
	v.SetDefault("backup.interval", 24*time.Hour)
}

// bindLegacyEnv keeps the plain variable names used by older .env files working.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("discord.token", "MOONCREST_DISCORD_TOKEN", "DISCORD_TOKEN", "TOKEN")
	_ = v.BindEnv("discord.application_id", "MOONCREST_DISCORD_APPLICATION_ID", "CLIENT_ID")
	_ = v.BindEnv("discord.guild_id", "MOONCREST_DISCORD_GUILD_ID", "GUILD_ID")
	_ = v.BindEnv("database.dsn", "MOONCREST_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.addr", "MOONCREST_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("http.api_token", "MOONCREST_HTTP_API_TOKEN", "API_TOKEN")
	_ = v.BindEnv("backup.account_id", "MOONCREST_BACKUP_ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID")
	_ = v.BindEnv("backup.access_key_id", "MOONCREST_BACKUP_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("backup.access_key_secret", "MOONCREST_BACKUP_ACCESS_KEY_SECRET", "R2_ACCESS_KEY_SECRET")
	_ = v.BindEnv("backup.bucket", "MOONCREST_BACKUP_BUCKET", "R2_BUCKET_NAME")
	_ = v.BindEnv("backup.cdn_base_url", "MOONCREST_BACKUP_CDN_BASE_URL", "CDN_BASE_URL")
}

// Validate checks the parts of the config the core cannot run without.
// Discord credentials are checked by the caller since tooling can run without them,
// and the database by ValidateDatabase since command registration never opens it.
func (c *Config) Validate() error {
	if c.Leaderboard.PageSize < 1 {
		return fmt.Errorf("leaderboard.page_size must be positive, got %d", c.Leaderboard.PageSize)
	}
	seen := make(map[int]bool, len(c.Achievements))
	for _, a := range c.Achievements {
		if a.Name == "" {
			return fmt.Errorf("achievement %d has no name", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate achievement id %d", a.ID)
		}
		seen[a.ID] = true
	}
	if c.Backup.Enabled && (c.Backup.Bucket == "" || c.Backup.AccountID == "") {
		return errors.New("backup.enabled requires backup.bucket and backup.account_id")
	}
	return nil
}

// ValidateDatabase checks the settings repository.Open needs.
func (c *Config) ValidateDatabase() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn (DATABASE_URL) is required")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	return nil
}
