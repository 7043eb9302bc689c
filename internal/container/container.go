package container

import (
	"context"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yhensel/burgers-api/config"
	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/internal/infrastructure/cache"
	esinfra "github.com/yhensel/burgers-api/internal/infrastructure/elasticsearch"
	"github.com/yhensel/burgers-api/internal/infrastructure/messaging"
	pginfra "github.com/yhensel/burgers-api/internal/infrastructure/postgres"
	"github.com/yhensel/burgers-api/pkg/helpers"
	mailtpl "github.com/yhensel/burgers-api/pkg/mailer/templates"
)

const connectTimeout = 3 * time.Second

// Container holds the shared infrastructure the router wires modules from.
// Redis, ES and Rabbit are nil when the service could not be reached at startup.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	ES     *elasticsearch.Client
	Rabbit *helpers.RabbitPublisher
	JWT    *helpers.JWTManager
	Hasher helpers.BcryptHasher
}

// New connects to Postgres, which is required, and connects to the optional services.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLife,
	})
	if err != nil {
		return nil, err
	}
	c := &Container{
		Config: cfg,
		Logger: logger,
		Pool:   pool,
		JWT:    helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.AccessTTL, cfg.AppName),
		Hasher: helpers.NewBcryptHasher(cfg.BcryptCost),
	}
	c.Redis = connectRedis(ctx, cfg, logger)
	c.ES = connectES(ctx, cfg, logger)
	c.Rabbit = connectRabbit(cfg, logger)
	return c, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *redis.Client {
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable; rate limiting disabled")
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func connectES(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *elasticsearch.Client {
	client, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err == nil {
		pctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		res, perr := client.Info(client.Info.WithContext(pctx))
		if perr == nil {
			defer res.Body.Close()
			if !res.IsError() {
				return client
			}
			perr = &esStatusError{status: res.Status()}
		}
		err = perr
	}
	logger.WithError(err).Warn("elasticsearch unavailable; search projection disabled")
	return nil
}

type esStatusError struct{ status string }

func (e *esStatusError) Error() string { return "elasticsearch info: " + e.status }

func connectRabbit(cfg *config.Config, logger *logrus.Logger) *helpers.RabbitPublisher {
	pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEventsQueue, cfg.RabbitMQEmailQueue)
	if err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable; lifecycle events are not published")
		return nil
	}
	return pub
}

// UserService builds the user service over whichever side-effect sinks are available.
func (c *Container) UserService() *application.Service {
	var (
		index  application.SearchIndex
		events application.EventPublisher
		uc     application.UserCache
	)
	if c.ES != nil {
		index = esinfra.NewUserIndex(c.ES, c.Config.ESUsersIndex)
	}
	if c.Rabbit != nil {
		events = &messaging.UserEventPublisher{
			Broker:      c.Rabbit,
			EventsQueue: c.Config.RabbitMQEventsQueue,
			EmailQueue:  c.Config.RabbitMQEmailQueue,
			MailEnabled: c.Config.MailSendEnabled,
			Branding: mailtpl.Branding{
				AppName:     c.Config.AppName,
				CompanyName: c.Config.CompanyName,
				SupportURL:  c.Config.SupportURL,
			},
		}
	}
	if c.Redis != nil {
		uc = cache.NewRedisUserCache(c.Redis, c.Config.UserCacheTTL)
	} else if c.Config.UserCacheInMemory {
		uc = cache.NewMemoryUserCache(c.Config.UserCacheTTL)
	}
	return application.NewService(pginfra.NewUserRepository(c.Pool), c.Hasher, c.Logger, index, events, uc)
}

func (c *Container) ClientService() *application.ClientService {
	return application.NewClientService(
		pginfra.NewClientRepository(c.Pool),
		pginfra.NewUserRepository(c.Pool),
		c.Hasher,
		c.JWT,
		c.Logger,
	)
}

// RateLimitStore returns the Redis client as a redis.Cmdable, or nil when Redis is down.
func (c *Container) RateLimitStore() redis.Cmdable {
	if c.Redis == nil {
		return nil
	}
	return c.Redis
}

func (c *Container) Close() {
	c.Rabbit.Close()
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	c.Pool.Close()
}
