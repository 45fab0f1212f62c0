// Package webhook terminates Drive push notifications. Authentication failures
// are the only non-2xx path: once a notification is authenticated, the handler
// acknowledges it no matter what happens downstream, because a non-2xx
// response makes the provider back off and eventually disable the channel.
package webhook

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Spountil/watermark-gdrive/internal/dedup"
)

// Notification headers set by the provider.
const (
	HeaderChannelID     = "X-Goog-Channel-ID"
	HeaderChannelToken  = "X-Goog-Channel-Token"
	HeaderResourceID    = "X-Goog-Resource-ID"
	HeaderResourceState = "X-Goog-Resource-State"
	HeaderMessageNumber = "X-Goog-Message-Number"
)

// StateSync is sent once when a channel is created; it carries no change
// data and is acknowledged without reconciliation.
const StateSync = "sync"

// Submitter enqueues a reconciliation for a resource. *sync.Pool satisfies it.
type Submitter interface {
	Submit(resourceID string) error
}

type Handler struct {
	secret string
	gate   *dedup.Gate
	pool   Submitter
}

func New(secret string, gate *dedup.Gate, pool Submitter) *Handler {
	return &Handler{
		secret: secret,
		gate:   gate,
		pool:   pool,
	}
}

// Notify handles one push notification.
func (h *Handler) Notify(ctx *gin.Context) {
	token := ctx.GetHeader(HeaderChannelToken)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		ctx.JSON(http.StatusForbidden, gin.H{
			"error": "invalid channel token",
		})
		return
	}

	channelID := ctx.GetHeader(HeaderChannelID)
	resourceID := ctx.GetHeader(HeaderResourceID)
	state := ctx.GetHeader(HeaderResourceState)

	if state == StateSync {
		slog.Info("channel sync notification", "channel", channelID, "resource", resourceID)
		ctx.String(http.StatusOK, "")
		return
	}

	accepted, err := h.gate.Accept(ctx, channelID, ctx.GetHeader(HeaderMessageNumber))
	var seqErr *dedup.MalformedSequenceError
	if errors.As(err, &seqErr) {
		slog.Warn("malformed message number", "channel", channelID, "raw", seqErr.Raw)
	} else if err != nil {
		// a broken watermark store must not make the provider retry harder
		slog.Error("dedup gate failed, proceeding", "channel", channelID, "error", err)
		accepted = true
	}

	if !accepted {
		slog.Debug("duplicate delivery skipped", "channel", channelID, "resource", resourceID)
		ctx.String(http.StatusOK, "")
		return
	}

	if err := h.pool.Submit(resourceID); err != nil {
		// shed with a log; redelivery is the retry mechanism
		slog.Warn("reconcile queue full, notification shed", "resource", resourceID)
	}

	ctx.String(http.StatusOK, "")
}
