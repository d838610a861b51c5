package repository

import (
	"github.com/cardforge/mint-worker/config"
	"github.com/cardforge/mint-worker/infra"
)

type Repository struct {
	MintJobRepo *MintJobRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra, cfg *config.EnvConfig) *Repository {
	repository = &Repository{
		MintJobRepo: NewMintJobRepository(
			infra.Postgres.DB,
			cfg.Worker.RetryDelay,
			cfg.Worker.MaxRetries,
		),
	}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}
