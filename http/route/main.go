package routes

import (
	"github.com/cardforge/mint-worker/http/controller"
	middlewares "github.com/cardforge/mint-worker/http/middleware"
	"github.com/gin-gonic/gin"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)
	r.GET("/healthz", ctrl.HealthCheck)

	apiRoutes := r.Group("/api/v1/mint")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.GET("/stats", ctrl.GetJobStats)
			jobRoutes.GET("/", ctrl.ListJobs)
			jobRoutes.POST("/", ctrl.EnqueueJob)
			jobRoutes.POST("/:mint_id/requeue", ctrl.RequeueJob)
		}
	}
	return r
}
