package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // clients authenticate with the token query parameter
	},
}

// LiveUpdates streams realtime writes under ?topic=, e.g. buses/3 or shifts/12.
// The current values are sent first, then every change.
func (h *Handler) LiveUpdates(c *gin.Context) {
	topic := strings.Trim(c.Query("topic"), "/")
	parts := strings.Split(topic, "/")
	if len(parts) != 2 || (parts[0] != "buses" && parts[0] != "shifts") || parts[1] == "" {
		respondError(c, apperr.Validation("topic must be buses/{id} or shifts/{id}"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	logrus.WithField("topic", topic).Info("Live client connected")
	h.Hub.Serve(conn, topic)
	logrus.WithField("topic", topic).Info("Live client disconnected")
}
