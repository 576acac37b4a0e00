package web

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/damsblt/helvetiforma-sub003/internal/core"
)

// maxWebhookBody bounds webhook payload reads. Stripe events are small;
// anything bigger is not one.
const maxWebhookBody = 1 << 20

// requireBearer authenticates service-to-service calls against the
// trigger secret. Constant-time compare; a server without a configured
// secret refuses everything rather than becoming open.
func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if s.opts.TriggerSecret == "" || !ok ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.TriggerSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// contentWebhookBody is the content store's change notification.
type contentWebhookBody struct {
	ID        string `json:"_id" binding:"required"`
	Type      string `json:"_type"`
	Operation string `json:"operation"`
}

// handleContentWebhook starts a catalog sync for the changed item.
// Deletes are acknowledged but never remove a product: purchase history
// outlives unpublished content.
func (s *Server) handleContentWebhook(c *gin.Context) {
	var body contentWebhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing _id"})
		return
	}

	if body.Operation == "delete" {
		log.Info().Str("content_item", body.ID).Msg("content deleted, product left intact")
		c.JSON(http.StatusOK, gin.H{"success": true, "outcome": "ignored"})
		return
	}

	result, err := s.engine.SyncContentItem(c.Request.Context(), body.ID)
	if err != nil {
		s.writeSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": result.Outcome})
}

// handleStripeWebhook ingests a payment processor event. The response
// code steers redelivery: 400 means the event will never process (bad
// signature or unprocessable metadata), 503 means the canonical write
// failed and the processor should redeliver. Duplicates return 200 like
// fresh successes.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	result, err := s.engine.HandlePaymentWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"status":   result.Status,
			"mirrored": result.Mirrored,
		})
	case errors.Is(err, core.ErrIgnoredEvent):
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ignored"})
	case core.IsAuth(err):
		// Intentionally vague: a missing and an invalid signature look
		// the same from outside.
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid signature"})
	case core.IsValidation(err):
		log.Warn().Err(err).Msg("unprocessable payment event flagged for reconciliation")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case core.IsTransient(err):
		log.Error().Err(err).Msg("canonical purchase write failed, requesting redelivery")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "temporarily unavailable", "retryable": true})
	default:
		log.Error().Err(err).Msg("payment webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

// handleAccess answers "may this user view this item". Undetermined maps
// to 503 with retryable:true so the site shows a locked-with-retry
// state, never a sales prompt.
func (s *Server) handleAccess(c *gin.Context) {
	userID := c.Query("userId")
	contentItemID := c.Query("contentItemId")
	if userID == "" || contentItemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "userId and contentItemId required"})
		return
	}

	decision, err := s.engine.ResolveAccess(c.Request.Context(), userID, contentItemID)
	if decision.Undetermined() {
		log.Warn().Err(err).Str("user", userID).Str("content_item", contentItemID).
			Msg("access undetermined")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":   false,
			"granted":   false,
			"reason":    decision.Reason,
			"retryable": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"granted": decision.Granted,
		"reason":  decision.Reason,
	})
}

// handleManualSync is the operator reconciliation surface: re-run the
// idempotent catalog sync for one item at any time.
func (s *Server) handleManualSync(c *gin.Context) {
	result, err := s.engine.SyncContentItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeSyncError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": result.Outcome, "product": result.Product})
}

type checkoutRequest struct {
	ContentItemID string `json:"contentItemId" binding:"required"`
	UserID        string `json:"userId" binding:"required"`
}

func (s *Server) handleCheckout(c *gin.Context) {
	if s.checkout == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "checkout not configured"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "contentItemId and userId required"})
		return
	}

	item, err := s.content.GetContentItem(c.Request.Context(), req.ContentItemID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "content item not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "temporarily unavailable", "retryable": true})
		return
	}

	sess, err := s.checkout.CreateCheckoutSession(c.Request.Context(), item, req.UserID, s.opts.SuccessURL, s.opts.CancelURL)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "id": sess.ID, "url": sess.URL})
	case core.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case core.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "temporarily unavailable", "retryable": true})
	default:
		log.Error().Err(err).Msg("checkout session creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

func (s *Server) handleJournalList(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "journal not configured"})
		return
	}

	unresolvedOnly := c.DefaultQuery("all", "false") != "true"
	entries, err := s.journal.List(unresolvedOnly)
	if err != nil {
		log.Error().Err(err).Msg("journal list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "entries": entries, "count": len(entries)})
}

func (s *Server) handleJournalResolve(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "journal not configured"})
		return
	}

	if err := s.journal.Resolve(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) writeSyncError(c *gin.Context, err error) {
	switch {
	case core.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case core.IsTransient(err):
		log.Warn().Err(err).Msg("catalog sync hit a transient backend failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "temporarily unavailable", "retryable": true})
	default:
		log.Error().Err(err).Msg("catalog sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}
