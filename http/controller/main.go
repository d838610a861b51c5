package controller

import (
	"github.com/cardforge/mint-worker/config"
	"github.com/cardforge/mint-worker/infra"
	"github.com/cardforge/mint-worker/repository"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
}

func NewController(cfg *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	return &Controller{
		Config:     cfg,
		Infra:      infra,
		Repository: repo,
	}
}
