package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) StartSimulation(c *gin.Context) {
	var in struct {
		ShiftID         uint    `json:"shift_id" binding:"required"`
		SpeedMultiplier float64 `json:"speed_multiplier"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if err := h.Simulator.Start(c.Request.Context(), in.ShiftID, in.SpeedMultiplier); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, "Simulation started", gin.H{"shift_id": in.ShiftID})
}

func (h *Handler) StopSimulation(c *gin.Context) {
	var in struct {
		ShiftID uint `json:"shift_id" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	stopped := h.Simulator.Stop(in.ShiftID)
	msg := "Simulation stopped"
	if !stopped {
		msg = "No simulation running for this shift"
	}
	respond(c, http.StatusOK, msg, gin.H{"shift_id": in.ShiftID, "stopped": stopped})
}

func (h *Handler) SimulationStatus(c *gin.Context) {
	id, ok := paramID(c, "shiftId")
	if !ok {
		return
	}
	respond(c, http.StatusOK, "Simulation status", gin.H{"shift_id": id, "running": h.Simulator.Running(id)})
}

func (h *Handler) RunningSimulations(c *gin.Context) {
	respond(c, http.StatusOK, "Running simulations", gin.H{"shift_ids": h.Simulator.RunningShifts()})
}
