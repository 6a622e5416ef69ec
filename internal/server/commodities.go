package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	commoditydomain "github.com/graindesk/millbook/internal/commodity/domain"
)

type registerCommodityRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

func (s *Server) RegisterCommodity(c *gin.Context) {
	var req registerCommodityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	commodity, err := s.commoditySvc.Register(c.Request.Context(), commoditydomain.RegisterCommodityRequest{
		ID:       req.ID,
		Name:     req.Name,
		Category: commoditydomain.Category(req.Category),
		Unit:     commoditydomain.Unit(req.Unit),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, commodity)
}

func (s *Server) GetCommodityByID(c *gin.Context) {
	commodity, err := s.commoditySvc.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, commodity)
}

func (s *Server) ListCommodities(c *gin.Context) {
	commodities, err := s.commoditySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commodities": commodities})
}
