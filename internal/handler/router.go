package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/suma/internal/middleware"
)

type RouterDeps struct {
	Auth        *AuthHandler
	Analyses    *AnalysisHandler
	RAG         *RAGHandler
	JWTSecret   []byte
	AuthLimiter time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.AuthLimiter))
	limited.POST("/auth/register", deps.Auth.Register)
	limited.POST("/auth/login", deps.Auth.Login)
	api.POST("/auth/refresh", deps.Auth.Refresh)
	api.POST("/auth/logout", deps.Auth.Logout)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/me", deps.Auth.Me)

	authGroup.POST("/analyze", deps.Analyses.Analyze)
	authGroup.GET("/analysis/:id", deps.Analyses.Get)
	authGroup.GET("/analysis/:id/file", deps.Analyses.File)
	authGroup.GET("/analyses", deps.Analyses.List)

	authGroup.POST("/rag/build-vectorstore", deps.RAG.Build)
	authGroup.POST("/rag/query", deps.RAG.Query)
	authGroup.POST("/rag/search", deps.RAG.Search)
	authGroup.POST("/rag/analyze-quiz", deps.RAG.AnalyzeQuiz)
	authGroup.POST("/rag/check-high-occurrence", deps.RAG.CheckHighOccurrence)
}
