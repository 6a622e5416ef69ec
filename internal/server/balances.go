package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListBalances(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	asOf, err := parseOptionalTime(c.Query("as_of"), true)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_time", "as_of must be RFC3339 or YYYY-MM-DD"))
		return
	}
	if asOf == nil {
		now := time.Now().UTC()
		asOf = &now
	}

	balances, err := s.balanceSvc.BalancesByCommodity(c.Request.Context(), millID, *asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"as_of":    asOf,
		"balances": balances,
	})
}

func (s *Server) GetBalance(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	asOf, err := parseOptionalTime(c.Query("as_of"), true)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_time", "as_of must be RFC3339 or YYYY-MM-DD"))
		return
	}
	if asOf == nil {
		now := time.Now().UTC()
		asOf = &now
	}

	commodityID := c.Param("commodity_id")
	balance, err := s.balanceSvc.BalanceAsOf(c.Request.Context(), millID, commodityID, *asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"commodity_id": commodityID,
		"as_of":        asOf,
		"balance":      balance,
	})
}

func (s *Server) GetMovements(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	from, err := parseRequiredTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_time", "from must be RFC3339 or YYYY-MM-DD"))
		return
	}
	to, err := parseRequiredTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_time", "to must be RFC3339 or YYYY-MM-DD"))
		return
	}

	commodityID := c.Param("commodity_id")
	summary, err := s.balanceSvc.MovementsInRange(c.Request.Context(), millID, commodityID, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"commodity_id": commodityID,
		"from":         from,
		"to":           to,
		"movements":    summary,
	})
}
