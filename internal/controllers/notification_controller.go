package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ebus_manager/internal/notify"
)

func (h *Handler) SendNotification(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req notify.Request
	if !bindJSON(c, &req) {
		return
	}
	req.SentBy = claims.UserID
	n, err := h.Notifier.Send(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Notification sent successfully"
	if !n.IsSent {
		msg = "Notification saved but could not be delivered"
	}
	respond(c, http.StatusCreated, msg, n)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	list, err := h.Notifier.List(c.Request.Context(), queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Notifications retrieved", list)
}
