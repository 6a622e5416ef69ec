package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	dodomain "github.com/graindesk/millbook/internal/deliveryorder/domain"
	"github.com/shopspring/decimal"
)

type registerDeliveryOrderRequest struct {
	DONumber          string          `json:"do_number"`
	PartyRef          string          `json:"party_ref"`
	CommodityID       string          `json:"commodity_id"`
	Direction         string          `json:"direction"`
	CommittedQuantity decimal.Decimal `json:"committed_quantity"`
	IssueDate         string          `json:"issue_date"`
	DueDate           string          `json:"due_date"`
}

type recordLiftRequest struct {
	Quantity  decimal.Decimal `json:"quantity"`
	EntryDate string          `json:"entry_date"`
	SourceRef string          `json:"source_ref"`
}

func (s *Server) RegisterDeliveryOrder(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	var req registerDeliveryOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	issueDate, err := parseRequiredTime(req.IssueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("issue_date", "invalid_issue_date", "issue_date must be RFC3339 or YYYY-MM-DD"))
		return
	}
	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "due_date must be RFC3339 or YYYY-MM-DD"))
		return
	}

	order, err := s.doSvc.Register(c.Request.Context(), dodomain.RegisterRequest{
		MillID:            millID,
		DONumber:          req.DONumber,
		PartyRef:          req.PartyRef,
		CommodityID:       req.CommodityID,
		Direction:         dodomain.Direction(req.Direction),
		CommittedQuantity: req.CommittedQuantity,
		IssueDate:         issueDate,
		DueDate:           dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) ListDeliveryOrders(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	orders, err := s.doSvc.List(c.Request.Context(), millID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery_orders": orders})
}

func (s *Server) GetDeliveryOrder(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	order, err := s.doSvc.Find(c.Request.Context(), millID, c.Param("do_number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) GetDeliveryOrderRemaining(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	position, err := s.doSvc.Remaining(c.Request.Context(), millID, c.Param("do_number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, position)
}

func (s *Server) RecordDeliveryOrderLift(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	var req recordLiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entryDate, err := parseRequiredTime(req.EntryDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("entry_date", "invalid_entry_date", "entry_date must be RFC3339 or YYYY-MM-DD"))
		return
	}

	result, err := s.doSvc.RecordLift(c.Request.Context(), dodomain.LiftRequest{
		MillID:    millID,
		DONumber:  c.Param("do_number"),
		Quantity:  req.Quantity,
		EntryDate: entryDate,
		SourceRef: req.SourceRef,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) CancelDeliveryOrder(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	order, err := s.doSvc.Cancel(c.Request.Context(), millID, c.Param("do_number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
