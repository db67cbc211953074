package main

import (
	"context"
	"fmt"
	"math"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"bskyrelay/bsky"
	"bskyrelay/cache"
	"bskyrelay/config"
	"bskyrelay/monitoring"
	"bskyrelay/pipeline"
	"bskyrelay/tasks"
	"bskyrelay/telegram"
	"bskyrelay/timeline"
	"bskyrelay/utils"
)

func main() {
	log.SetLevel(log.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx := context.Background()

	sessionStore := bsky.NewSessionStore(cfg.SessionFile)
	bskyClient, err := bsky.NewClient(ctx, cfg, sessionStore)
	if err != nil {
		log.Fatalf("Error logging into Bluesky: %v", err)
	}

	if profile, err := bskyClient.Profile(ctx); err == nil {
		me := timeline.ParseProfile(profile)
		var following int64
		if me.FollowCount != nil {
			following = *me.FollowCount
		}
		log.Infof("Relaying timeline of %s (following %d accounts)", me.Handle, following)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Error connecting to Telegram: %v", err)
	}
	log.Infof("Telegram bot authorized as %s", bot.Self.UserName)

	postsCache := cache.NewPostsCache(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	renderer := telegram.NewRenderer(cfg.Location())
	sender := telegram.NewSender(bot, cfg.ChatID, cfg.TopicID)
	pusher := telegram.NewPusher(renderer, sender)
	relay := pipeline.New(bskyClient, postsCache, pusher)

	// Fixed-cadence trigger
	go utils.Recoverer(math.MaxInt, 1, func() {
		tasks.RunScheduler(ctx, relay, cfg.SyncInterval)
	})

	// Metrics endpoint
	go utils.Recoverer(math.MaxInt, 2, func() {
		if err := monitoring.Serve(cfg.MetricsPort); err != nil {
			log.Errorf("Error serving metrics: %v", err)
		}
	})

	// Manual trigger; blocks until the process is stopped.
	listener := telegram.NewCommandListener(bot, cfg.OwnerID, relay, bskyClient, pusher)
	listener.Run(ctx)
}
