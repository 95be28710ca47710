// internal/handler/cards.go
package handler

import (
	"card-rewards/internal/domain"
	"card-rewards/internal/middleware"
	"card-rewards/internal/ranking"
	"card-rewards/internal/service"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CardsHandler struct {
	cards *service.Cards
}

func NewCardsHandler(cards *service.Cards) *CardsHandler {
	return &CardsHandler{cards: cards}
}

// ListCategories godoc
// @Summary List spending categories
// @Success 200 {array} CategoryResponse
// @Router /api/v1/categories [get]
func (h *CardsHandler) ListCategories(c *gin.Context) {
	out := make([]CategoryResponse, len(domain.Categories))
	for i, cat := range domain.Categories {
		out[i] = CategoryResponse{Key: string(cat), Label: cat.Label()}
	}
	c.JSON(http.StatusOK, out)
}

// SearchCatalog godoc
// @Summary Search the card catalog by name or brand
// @Param q query string false "Search text"
// @Success 200 {array} domain.Card
// @Router /api/v1/catalog [get]
func (h *CardsHandler) SearchCatalog(c *gin.Context) {
	cards := h.cards.Catalog().Search(c.Query("q"))
	if cards == nil {
		cards = []domain.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

// GetCatalogCard godoc
// @Summary Get one catalog card
// @Param id path string true "Card id"
// @Success 200 {object} domain.Card
// @Failure 404 {object} map[string]string
// @Router /api/v1/catalog/{id} [get]
func (h *CardsHandler) GetCatalogCard(c *gin.Context) {
	card, ok := h.cards.Catalog().FindCard(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}

// ListOwned godoc
// @Summary List the caller's cards
// @Success 200 {array} domain.OwnedCard
// @Router /api/v1/cards [get]
func (h *CardsHandler) ListOwned(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	records, err := h.cards.ListOwned(c.Request.Context(), userID)
	if err != nil {
		slog.Error("ListOwned failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if records == nil {
		records = []domain.OwnedCard{}
	}
	c.JSON(http.StatusOK, records)
}

// ListAvailable godoc
// @Summary Catalog cards the caller does not own yet
// @Param q query string false "Search text"
// @Success 200 {array} domain.Card
// @Router /api/v1/cards/available [get]
func (h *CardsHandler) ListAvailable(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	cards, err := h.cards.Available(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		slog.Error("ListAvailable failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, cards)
}

// AddCards godoc
// @Summary Add catalog cards to the caller's set
// @Description Already owned cards are returned unchanged.
// @Accept json
// @Produce json
// @Param request body AddCardsRequest true "Card ids"
// @Success 200 {array} domain.OwnedCard
// @Failure 400 {object} map[string]string
// @Router /api/v1/cards [post]
func (h *CardsHandler) AddCards(c *gin.Context) {
	var req AddCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	records, err := h.cards.Add(c.Request.Context(), userID, req.CardIDs...)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCard) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("AddCards failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add cards"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// RemoveCard godoc
// @Summary Remove one owned card by record id
// @Param id path string true "Record id"
// @Success 200 {object} map[string]bool
// @Router /api/v1/cards/{id} [delete]
func (h *CardsHandler) RemoveCard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.cards.Remove(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		slog.Error("RemoveCard failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n > 0})
}

// RemoveCards godoc
// @Summary Remove several owned cards
// @Param request body RemoveCardsRequest true "Record ids"
// @Success 200 {object} map[string]int
// @Router /api/v1/cards/remove [post]
func (h *CardsHandler) RemoveCards(c *gin.Context) {
	var req RemoveCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.cards.Remove(c.Request.Context(), userID, req.IDs...)
	if err != nil {
		slog.Error("RemoveCards failed", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

// Rank godoc
// @Summary Rank the caller's cards for a category, best first
// @Param category query string true "Category key"
// @Success 200 {array} domain.RankedCard
// @Failure 400 {object} map[string]string
// @Router /api/v1/rank [get]
func (h *CardsHandler) Rank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category query param required"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, _ := domain.ParseCategory(req.Category)

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	entries, err := h.cards.Rank(c.Request.Context(), userID, category)
	if err != nil {
		slog.Error("Rank failed", "error", err, "user_id", userID, "category", category)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, ranking.View(entries))
}

func requireUser(c *gin.Context) (int64, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_id missing"})
		return 0, false
	}
	return userID, true
}
