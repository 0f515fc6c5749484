package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/dt-pm-tools/board-sync/internal/deadline"
	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response bodies of the webhook endpoint.
const (
	msgNoEventData  = "No relevant event data."
	msgNotRelevant  = "Column not relevant."
	msgProcessed    = "Webhook received and processed."
	endpointWebhook = "webhook"
	endpointSLA     = "sla_deadline"
)

// ChangeEvent is the column change notification sent by the platform.
type ChangeEvent struct {
	BoardID  monday.ID       `json:"boardId"`
	PulseID  monday.ID       `json:"pulseId"`
	ColumnID string          `json:"columnId"`
	Value    json.RawMessage `json:"value"`
}

// Complete reports whether every field needed for a sync is present.
// Zero ids and zero or false values count as absent.
func (e *ChangeEvent) Complete() bool {
	return e != nil && present(e.BoardID) && present(e.PulseID) && e.ColumnID != "" && !emptyJSON(e.Value)
}

func present(id monday.ID) bool {
	return id != "" && id != "0"
}

func emptyJSON(v json.RawMessage) bool {
	switch string(bytes.TrimSpace(v)) {
	case "", "null", `""`, "0", "false":
		return true
	}
	return false
}

type webhookRequest struct {
	Challenge string       `json:"challenge"`
	Event     *ChangeEvent `json:"event"`
}

type actionRequest struct {
	Payload struct {
		InputFields *deadline.Input `json:"inputFields"`
	} `json:"payload"`
}

func (s *Server) handleWebhook(c *gin.Context) {
	log := requestLog(c)

	body, err := c.GetRawData()
	if err != nil {
		s.observe(endpointWebhook, "ignored")
		c.String(http.StatusOK, msgNoEventData)
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.WithError(err).Debug("Unparseable webhook body.")
		s.observe(endpointWebhook, "ignored")
		c.String(http.StatusOK, msgNoEventData)
		return
	}

	// URL verification handshake sent when the webhook is registered.
	if req.Challenge != "" && req.Event == nil {
		s.observe(endpointWebhook, "challenge")
		c.JSON(http.StatusOK, gin.H{"challenge": req.Challenge})
		return
	}

	if !req.Event.Complete() {
		log.Debug("Webhook without event data.")
		s.observe(endpointWebhook, "ignored")
		c.String(http.StatusOK, msgNoEventData)
		return
	}

	ev := req.Event
	log = log.WithFields(logrus.Fields{
		"board":  ev.BoardID,
		"item":   ev.PulseID,
		"column": ev.ColumnID,
	})

	if !s.syncer.Monitors(ev.ColumnID) {
		log.Debug("Column not monitored.")
		s.observe(endpointWebhook, "filtered")
		c.String(http.StatusOK, msgNotRelevant)
		return
	}

	res, err := s.syncer.SyncItem(c.Request.Context(), ev.PulseID.String(), false)
	if err != nil {
		log.WithError(err).Error("Error processing webhook.")
		s.observe(endpointWebhook, "failed")
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveUpsert(res.Action)
	}
	s.observe(endpointWebhook, "processed")
	c.String(http.StatusOK, msgProcessed)
}

func (s *Server) handleDeadline(c *gin.Context) {
	log := requestLog(c)

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithError(err).Error("Invalid action payload.")
		s.observe(endpointSLA, "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.Payload.InputFields == nil {
		log.Error("Action payload without input fields.")
		s.observe(endpointSLA, "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payload.inputFields is required"})
		return
	}

	res, err := s.deadlines.Run(c.Request.Context(), *req.Payload.InputFields, false)
	if err != nil {
		log.WithError(err).Error("Error computing deadline.")
		s.observe(endpointSLA, "failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveDeadline()
	}
	s.observe(endpointSLA, "processed")
	c.JSON(http.StatusOK, gin.H{"ok": true, "deadline": res.Deadline})
}
