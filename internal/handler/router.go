package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/careercopilot/internal/middleware"
)

type RouterDeps struct {
	Auth         *AuthHandler
	Properties   *PropertiesHandler
	Resumes      *ResumeHandler
	Jobs         *JobHandler
	Applications *ApplicationHandler
	Copilot      *CopilotHandler
	Files        *FileHandler
	JWTSecret    []byte
	RateLimit    time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)
	api.GET("/properties", deps.Properties.Get)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/resumes", deps.Resumes.Create)
	authGroup.POST("/resumes/upload", deps.Resumes.Upload)
	authGroup.GET("/resumes", deps.Resumes.List)
	authGroup.GET("/resumes/:id", deps.Resumes.Get)
	authGroup.DELETE("/resumes/:id", deps.Resumes.Delete)

	authGroup.POST("/jobs", deps.Jobs.Create)
	authGroup.GET("/jobs", deps.Jobs.List)
	authGroup.GET("/jobs/:id", deps.Jobs.Get)
	authGroup.DELETE("/jobs/:id", deps.Jobs.Delete)

	authGroup.POST("/applications", deps.Applications.Create)
	authGroup.GET("/applications", deps.Applications.List)
	authGroup.GET("/applications/:id", deps.Applications.Get)
	authGroup.PATCH("/applications/:id", deps.Applications.Update)
	authGroup.DELETE("/applications/:id", deps.Applications.Delete)

	authGroup.GET("/analyses", deps.Copilot.ListAnalyses)
	authGroup.GET("/files/:key", deps.Files.Get)

	copilot := authGroup.Group("/copilot")
	copilot.Use(middleware.RateLimit(deps.RateLimit))
	copilot.POST("/analyze", deps.Copilot.Analyze)
	copilot.POST("/ask", deps.Copilot.Ask)
	copilot.POST("/tailor", deps.Copilot.Tailor)
	copilot.POST("/match", deps.Copilot.Match)
}
