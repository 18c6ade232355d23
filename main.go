package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/cache"
	"github.com/fanzyb/roblox-mooncrest/config"
	"github.com/fanzyb/roblox-mooncrest/discordbot"
	"github.com/fanzyb/roblox-mooncrest/handlers"
	"github.com/fanzyb/roblox-mooncrest/repository"
	"github.com/fanzyb/roblox-mooncrest/services"
	"github.com/fanzyb/roblox-mooncrest/utils"
	"github.com/fanzyb/roblox-mooncrest/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to the config file (default ./config.yaml)")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before the config")
	registerOnly := pflag.Bool("register-commands", false, "register slash commands with Discord and exit")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Discord.Token == "" {
		return errors.New("discord.token (DISCORD_TOKEN) is required")
	}
	levels, err := services.NewLevelTable(cfg.Levels)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return err
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	if *registerOnly {
		return discordbot.RegisterCommands(ctx, session, cfg.Discord.ApplicationID, cfg.Discord.GuildID, handlers.Commands())
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return err
	}
	accounts := repository.NewAccountRepository(db)

	var identity services.IdentityProvider = services.NewRobloxClient(
		cfg.Roblox.UsersBaseURL,
		cfg.Roblox.ThumbnailBaseURL,
		cfg.Roblox.GroupsBaseURL,
		utils.NewHTTPClient(cfg.Roblox.Timeout),
	)
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(ctx); err != nil {
			log.Printf("⚠️  Redis unavailable at %s, username lookups are not cached: %v", cfg.Redis.Addr, err)
			_ = rc.Close()
		} else {
			defer rc.Close()
			identity = services.NewCachedIdentityProvider(identity, rc, cfg.Redis.LookupTTL)
			log.Printf("✅ Caching Roblox lookups in Redis (%s)", cfg.Redis.LookupTTL)
		}
	}

	guild := &discordbot.Guild{API: session, GuildID: cfg.Discord.GuildID}
	hub := services.NewEventHub(32)
	channels := &discordbot.ChannelNotifier{
		API: session,
		Channels: map[services.EventKind]string{
			services.EventLink:        cfg.Channels.LinkLog,
			services.EventLedger:      cfg.Channels.XPLog,
			services.EventAchievement: cfg.Channels.RewardLog,
		},
		Color: cfg.Discord.EmbedColor,
	}
	notifier := services.MultiNotifier{channels, hub}

	catalog := services.NewAchievementCatalog(cfg.Achievements)
	resolver := &services.TargetResolver{Accounts: accounts, Identity: identity}
	board := &services.LeaderboardService{
		Accounts: accounts,
		Resolver: resolver,
		Levels:   levels,
		Catalog:  catalog,
		PageSize: cfg.Leaderboard.PageSize,
	}
	stats := &services.StatsService{
		Accounts:  accounts,
		Identity:  identity,
		GroupID:   cfg.Roblox.GroupID,
		Levels:    levels,
		Catalog:   catalog,
		StartedAt: time.Now(),
		Events:    hub,
	}

	bot := &handlers.Bot{
		Links: &services.LinkService{
			Accounts:     accounts,
			Identity:     identity,
			Roles:        guild,
			Notifier:     notifier,
			Spawn:        services.GoSpawner,
			GroupID:      cfg.Roblox.GroupID,
			LinkedRoleID: cfg.Roles.LinkedRoleID,
		},
		Ledger: &services.LedgerService{
			Accounts:               accounts,
			Resolver:               resolver,
			Levels:                 levels,
			Catalog:                catalog,
			Sync:                   services.NewRoleSynchronizer(guild, catalog),
			Notifier:               notifier,
			Spawn:                  services.GoSpawner,
			GroupID:                cfg.Roblox.GroupID,
			RequireGroupMembership: cfg.Ledger.RequireGroupMembership,
		},
		Board:    board,
		Stats:    stats,
		Resolver: resolver,
		Catalog:  catalog,
		Grants: services.RoleGrants{
			services.CapManageXP:      cfg.Roles.XPManagers,
			services.CapManageRewards: cfg.Roles.RewardManagers,
			services.CapManageLinks:   cfg.Roles.LinkManagers,
			services.CapDebug:         cfg.Roles.DebugManagers,
		},
		PageSize:   cfg.Leaderboard.PageSize,
		ButtonTTL:  cfg.Leaderboard.ButtonTTL,
		EmbedColor: cfg.Discord.EmbedColor,
	}

	router := &discordbot.Router{API: session, Handler: bot}
	session.AddHandler(router.OnInteraction)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Printf("✅ Logged in as %s", r.User.String())
	})
	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close()

	var jobs []workers.Job
	if cfg.Presence.Enabled && cfg.Roblox.GroupID != 0 {
		jobs = append(jobs, workers.NewPresenceRefresher(identity, guild, cfg.Roblox.GroupID, cfg.Presence.Interval))
	}
	if cfg.Backup.Enabled {
		store, err := utils.NewObjectStore(ctx, utils.R2Config{
			AccountID:       cfg.Backup.AccountID,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			AccessKeySecret: cfg.Backup.AccessKeySecret,
			Bucket:          cfg.Backup.Bucket,
			CDNBaseURL:      cfg.Backup.CDNBaseURL,
		})
		if err != nil {
			return err
		}
		jobs = append(jobs, workers.NewLedgerBackup(accounts, store, cfg.App.Name, cfg.Backup.Interval))
	}
	if len(jobs) > 0 {
		sched, err := workers.StartScheduler(ctx, jobs...)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Shutdown() }()
	}

	if cfg.HTTP.Addr != "" {
		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		}))
		handlers.SetupAPIRoutes(app, handlers.APIDeps{
			Accounts: accounts,
			Board:    board,
			Stats:    stats,
			Events:   hub,
			APIToken: cfg.HTTP.APIToken,
			PageSize: cfg.Leaderboard.PageSize,
		})
		go func() {
			if err := app.Listen(cfg.HTTP.Addr); err != nil {
				log.Printf("Server error: %v", err)
			}
		}()
		defer func() { _ = app.Shutdown() }()
		log.Printf("✅ API listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("✅ %s running (%d levels, %d achievements)", cfg.App.Name, levels.Len(), len(catalog.All()))
	<-ctx.Done()
	log.Println("Shutting down...")
	return nil
}
