// Package api serves the read-only HTTP endpoints next to the socket
// gateway.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/kiliankoe/cavetalk/internal/content"
	"github.com/kiliankoe/cavetalk/internal/game"
	"github.com/kiliankoe/cavetalk/internal/room"
	"github.com/kiliankoe/cavetalk/internal/ws"
)

const qrSize = 320

type Handler struct {
	rooms     *room.Manager
	packs     *content.Repository
	publicURL string
	now       func() time.Time
}

func New(rooms *room.Manager, packs *content.Repository, publicURL string) *Handler {
	return &Handler{
		rooms:     rooms,
		packs:     packs,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)
	r.GET("/api/packs", h.listPacks)
	r.GET("/api/rooms/:code", h.getRoom)
	r.GET("/api/rooms/:code/summary", h.getSummary)
	r.GET("/api/rooms/:code/qr", h.getQR)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": h.now().UTC()})
}

type packInfo struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Version   string           `json:"version"`
	Metadata  content.Metadata `json:"metadata"`
	CardCount int              `json:"cardCount"`
}

func (h *Handler) listPacks(c *gin.Context) {
	packs := h.packs.Packs()
	out := make([]packInfo, 0, len(packs))
	for _, p := range packs {
		out = append(out, packInfo{ID: p.ID, Name: p.Name, Version: p.Version, Metadata: p.Metadata, CardCount: len(p.Cards)})
	}
	c.JSON(http.StatusOK, gin.H{"packs": out})
}

func (h *Handler) getRoom(c *gin.Context) {
	snap, err := h.rooms.Snapshot(c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap.Public())
}

func (h *Handler) getSummary(c *gin.Context) {
	code := c.Param("code")
	over, err := h.rooms.IsGameOver(code)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !over {
		c.JSON(http.StatusConflict, gin.H{"error": "game is still running"})
		return
	}
	sum, err := h.rooms.Summary(code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.GameEnded(sum))
}

// getQR renders the room's join link as a PNG for the shared screen.
func (h *Handler) getQR(c *gin.Context) {
	snap, err := h.rooms.Snapshot(c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	png, err := qrcode.Encode(h.JoinURL(snap.Code), qrcode.Medium, qrSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) JoinURL(code string) string {
	return h.publicURL + "/join/" + code
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, game.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
