package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotedomain "github.com/smallops/dealdesk/internal/quote/domain"
	"github.com/smallops/dealdesk/pkg/db/pagination"
)

func (s *Server) ListQuotes(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.quoteSvc.List(c.Request.Context(), quotedomain.ListQuoteRequest{
		Pagination: query.Pagination,
		Status:     strings.TrimSpace(query.Status),
		CustomerID: strings.TrimSpace(query.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Quotes, "page_info": resp.PageInfo})
}

func (s *Server) CreateQuote(c *gin.Context) {
	var req quotedomain.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	quote, err := s.quoteSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": quote})
}

func (s *Server) GetQuote(c *gin.Context) {
	quote, err := s.quoteSvc.GetByID(c.Request.Context(), c.Param("quoteId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) UpdateQuote(c *gin.Context) {
	var req quotedomain.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("quoteId")

	quote, err := s.quoteSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) DeleteQuote(c *gin.Context) {
	if err := s.quoteSvc.Delete(c.Request.Context(), c.Param("quoteId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) SendQuote(c *gin.Context) {
	quote, err := s.quoteSvc.Send(c.Request.Context(), c.Param("quoteId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) AcceptQuote(c *gin.Context) {
	var req quotedomain.AcceptQuoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}
	req.ID = c.Param("quoteId")

	result, err := s.quoteSvc.Accept(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RejectQuote(c *gin.Context) {
	quote, err := s.quoteSvc.Reject(c.Request.Context(), c.Param("quoteId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) ExpireQuote(c *gin.Context) {
	quote, err := s.quoteSvc.Expire(c.Request.Context(), c.Param("quoteId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) DownloadQuotePDF(c *gin.Context) {
	quote, err := s.quoteSvc.GetByID(c.Request.Context(), c.Param("quoteId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if quote.PDFPath == nil || *quote.PDFPath == "" {
		AbortWithError(c, quotedomain.ErrPDFNotAvailable)
		return
	}

	reader, size, err := s.pdfStore.Open(*quote.PDFPath)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", quote.QuoteNumber+".pdf"))
	c.DataFromReader(http.StatusOK, size, "application/pdf", reader, nil)
}

func (s *Server) RegenerateQuotePDF(c *gin.Context) {
	if err := s.quoteSvc.RequestPDF(c.Request.Context(), c.Param("quoteId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
