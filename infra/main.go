package infra

import (
	"github.com/cardforge/mint-worker/config"
	"github.com/cardforge/mint-worker/infra/produce"
)

type Infra struct {
	Redis       *RedisClient
	Postgres    *PostgresClient
	Logger      *LoggerClient
	Metrics     *MetricsClient
	RabbitMQ    *RabbitMQClient
	MintService *MintService
	Produce     *produce.Produce
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	metrics := InitMetricsClient(cfg.EnvConfig)
	if metrics == nil {
		panic("Failed to initialize Metrics service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	mintService := InitMintService(cfg.EnvConfig)
	if mintService == nil {
		panic("Failed to initialize Mint service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	infraInstance = &Infra{
		Redis:       redis,
		Postgres:    postgres,
		Logger:      logger,
		Metrics:     metrics,
		RabbitMQ:    rabbitMQ,
		MintService: mintService,
		Produce:     produceService,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}
