package server

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	millingdomain "github.com/graindesk/millbook/internal/milling/domain"
	"github.com/shopspring/decimal"
)

type millingOutputRequest struct {
	CommodityID    string          `json:"commodity_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	PercentOfInput decimal.Decimal `json:"percent_of_input"`
}

type millingBatchRequest struct {
	Date             string                 `json:"date"`
	InputCommodityID string                 `json:"input_commodity_id"`
	InputQuantity    decimal.Decimal        `json:"input_quantity"`
	Outputs          []millingOutputRequest `json:"outputs"`
	SourceRef        string                 `json:"source_ref"`
}

func (s *Server) ValidateMillingBatch(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	draft, ok := s.bindMillingBatch(c, millID)
	if !ok {
		return
	}

	result, err := s.millingSvc.Validate(c.Request.Context(), draft)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) CommitMillingBatch(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	draft, ok := s.bindMillingBatch(c, millID)
	if !ok {
		return
	}

	result, err := s.millingSvc.Commit(c.Request.Context(), draft)
	if err != nil {
		if errors.Is(err, millingdomain.ErrBatchRejected) {
			// The violation list is the useful part of a rejection.
			c.JSON(http.StatusUnprocessableEntity, result)
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) bindMillingBatch(c *gin.Context, millID snowflake.ID) (millingdomain.BatchDraft, bool) {
	var req millingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return millingdomain.BatchDraft{}, false
	}

	date, err := parseRequiredTime(req.Date, false)
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_batch_date", "date must be RFC3339 or YYYY-MM-DD"))
		return millingdomain.BatchDraft{}, false
	}

	outputs := make([]millingdomain.OutputDraft, 0, len(req.Outputs))
	for _, output := range req.Outputs {
		outputs = append(outputs, millingdomain.OutputDraft{
			CommodityID:    output.CommodityID,
			Quantity:       output.Quantity,
			PercentOfInput: output.PercentOfInput,
		})
	}

	return millingdomain.BatchDraft{
		MillID:           millID,
		Date:             date,
		InputCommodityID: req.InputCommodityID,
		InputQuantity:    req.InputQuantity,
		Outputs:          outputs,
		SourceRef:        req.SourceRef,
	}, true
}
