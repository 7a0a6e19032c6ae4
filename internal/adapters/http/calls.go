package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dkeye/Telehealth/internal/app"
	"github.com/dkeye/Telehealth/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type callHandlers struct {
	ledger *app.Ledger
}

// writeError maps ledger errors onto status codes. Bodies use "detail" the
// way the web client expects.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyEnded), errors.Is(err, domain.ErrCalleeTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidEndTime):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"detail": "internal error"})
		return
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}

func (h *callHandlers) createInvite(c *gin.Context) {
	uid := currentUser(c)
	s, err := h.ledger.CreateInvite(c.Request.Context(), &uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *callHandlers) history(c *gin.Context) {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid skip"})
		return
	}
	limit, err := queryInt(c, "limit", app.DefaultHistoryLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid limit"})
		return
	}
	list, err := h.ledger.ListHistory(c.Request.Context(), currentUser(c), skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *callHandlers) get(c *gin.Context) {
	s, err := h.ledger.GetSession(c.Request.Context(), domain.SessionID(c.Param("session_id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *callHandlers) join(c *gin.Context) {
	s, err := h.ledger.JoinSession(c.Request.Context(), domain.SessionID(c.Param("session_id")), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *callHandlers) end(c *gin.Context) {
	id := domain.SessionID(c.Param("session_id"))
	s, err := h.ledger.EndSession(c.Request.Context(), currentUser(c), id, h.ledger.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
