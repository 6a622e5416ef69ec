package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/graindesk/millbook/internal/ledger/domain"
	"github.com/graindesk/millbook/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type transactionRequest struct {
	CommodityID string          `json:"commodity_id"`
	Direction   string          `json:"direction"`
	Quantity    decimal.Decimal `json:"quantity"`
	EntryDate   string          `json:"entry_date"`
	SourceType  string          `json:"source_type"`
	SourceRef   string          `json:"source_ref"`
	DORef       string          `json:"do_ref"`
}

type transactionBatchRequest struct {
	Entries []transactionRequest `json:"entries"`
}

func (s *Server) RecordTransaction(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	draft, err := req.toDraft(millID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.ledgerSvc.Append(c.Request.Context(), draft)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) RecordTransactionBatch(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	var req transactionBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	drafts := make([]ledgerdomain.EntryDraft, 0, len(req.Entries))
	for _, entry := range req.Entries {
		draft, err := entry.toDraft(millID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		drafts = append(drafts, draft)
	}

	entries, err := s.ledgerSvc.AppendBatch(c.Request.Context(), drafts)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entries": entries})
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	millID, ok := s.millID(c)
	if !ok {
		return
	}

	filter, err := parseLedgerFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be an integer"))
		return
	}
	if page.PageSize < 1 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be at least 1"))
		return
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid_page_token", "page_token is not a valid cursor"))
			return
		}
		filter.AfterSeq = cursor.Seq
	}
	if filter.Limit == 0 {
		filter.Limit = page.PageSize
	}
	// Fetch one extra row to learn whether a next page exists.
	filter.Limit++

	entries, err := s.ledgerSvc.List(c.Request.Context(), millID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var info pagination.PageInfo
	if filter.Limit > 0 && len(entries) == filter.Limit {
		entries = entries[:len(entries)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{Seq: entries[len(entries)-1].Seq})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		info = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "page_info": info})
}

func (r transactionRequest) toDraft(millID snowflake.ID) (ledgerdomain.EntryDraft, error) {
	entryDate, err := parseRequiredTime(r.EntryDate, false)
	if err != nil {
		return ledgerdomain.EntryDraft{}, newValidationError("entry_date", "invalid_entry_date", "entry_date must be RFC3339 or YYYY-MM-DD")
	}
	return ledgerdomain.EntryDraft{
		MillID:      millID,
		CommodityID: r.CommodityID,
		Direction:   ledgerdomain.Direction(r.Direction),
		Quantity:    r.Quantity,
		EntryDate:   entryDate,
		SourceType:  ledgerdomain.SourceType(r.SourceType),
		SourceRef:   r.SourceRef,
		DORef:       r.DORef,
	}, nil
}

func parseLedgerFilter(c *gin.Context) (ledgerdomain.QueryFilter, error) {
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		return ledgerdomain.QueryFilter{}, newValidationError("from", "invalid_time", "from must be RFC3339 or YYYY-MM-DD")
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		return ledgerdomain.QueryFilter{}, newValidationError("to", "invalid_time", "to must be RFC3339 or YYYY-MM-DD")
	}
	afterSeq, err := parseOptionalInt64(c.Query("after_seq"))
	if err != nil {
		return ledgerdomain.QueryFilter{}, newValidationError("after_seq", "invalid_after_seq", "after_seq must be an integer")
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		return ledgerdomain.QueryFilter{}, newValidationError("limit", "invalid_limit", "limit must be a positive integer")
	}

	return ledgerdomain.QueryFilter{
		CommodityID: c.Query("commodity_id"),
		DORef:       c.Query("do_ref"),
		From:        from,
		To:          to,
		AfterSeq:    afterSeq,
		Limit:       limit,
	}, nil
}
