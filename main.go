package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/activity"
	"taskboard-api/api"
	"taskboard-api/board"
	"taskboard-api/storage"
	"taskboard-api/stream"
)

const defaultEventsChannel = "board-events"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()
	logger.SetLevel(log.GetLevel())

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	usersTableName := os.Getenv("USERS_TABLE")
	activityQueueName := os.Getenv("ACTIVITY_QUEUE")
	if connStr == "" || tasksTableName == "" || usersTableName == "" || activityQueueName == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tasksTableName, usersTableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	rc := redisClient()
	cacheTTL := 30 * time.Second
	if v := os.Getenv("BOARD_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid BOARD_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	cache := storage.NewCache(store, rc, cacheTTL)

	queue, err := activity.NewQueueClient(connStr, activityQueueName)
	if err != nil {
		log.Fatalf("activity queue: %v", err)
	}
	recorder := activity.NewRecorder(queue, logger)
	defer recorder.Close()

	hub := stream.NewHub(logger)
	var bus board.Publisher
	if rc != nil {
		channel := os.Getenv("BOARD_EVENTS_CHANNEL")
		if channel == "" {
			channel = defaultEventsChannel
		}
		bus = stream.NewRedisPublisher(rc, channel)
		go stream.SubscribeEvents(context.Background(), logger, rc, channel, hub)
	} else {
		bus = stream.NewLocalPublisher(hub)
	}

	pipeline := board.New(cache, store, recorder, bus, logger)
	auth := newAuth()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, pipeline, cache, auth, hub, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// redisClient parses REDIS_CONNECTION_STRING, accepting either a redis URL
// or the comma-separated host,key=value form. Returns nil when redis is not
// configured; the cache and fan-out then run in-process only.
func redisClient() *redis.Client {
	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Warn("redis not configured, events fan out to this instance only")
		return nil
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	return redis.NewClient(redisOpts)
}

func newAuth() *api.Auth {
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		return api.NewAuth(nil, "", "")
	}
	jwtAudience := os.Getenv("AUTH_AUDIENCE")
	authDomain := os.Getenv("AUTH_DOMAIN")
	if jwtAudience == "" || authDomain == "" {
		log.Fatal("missing auth config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
}
