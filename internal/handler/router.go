package handler

import (
	"card-rewards/internal/auth"
	"card-rewards/internal/middleware"
	"card-rewards/internal/service"
	"card-rewards/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Cards  *service.Cards
	Users  storage.UserStorage
	Tokens *auth.TokenService
	// Telegram, when set, receives webhook updates on POST /telegram.
	Telegram gin.HandlerFunc
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Telegram != nil {
		router.POST("/telegram", deps.Telegram)
	}

	authHandler := NewAuthHandler(deps.Users, deps.Tokens)
	cardsHandler := NewCardsHandler(deps.Cards)

	public := router.Group("/api/v1")
	{
		public.POST("/signup", authHandler.Signup)
		public.POST("/login", authHandler.Login)
		public.GET("/categories", cardsHandler.ListCategories)
		public.GET("/catalog", cardsHandler.SearchCatalog)
		public.GET("/catalog/:id", cardsHandler.GetCatalogCard)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewAuthMiddleware(deps.Tokens).RequireAuth())
	{
		v1.GET("/cards", cardsHandler.ListOwned)
		v1.GET("/cards/available", cardsHandler.ListAvailable)
		v1.POST("/cards", cardsHandler.AddCards)
		v1.POST("/cards/remove", cardsHandler.RemoveCards)
		v1.DELETE("/cards/:id", cardsHandler.RemoveCard)
		v1.GET("/rank", cardsHandler.Rank)
	}

	return router
}
