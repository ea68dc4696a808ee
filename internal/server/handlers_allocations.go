package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samigerges/workflow-sub001/internal/allocation"
)

func parseEntityID(raw string) (allocation.EntityID, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, allocation.ErrInvalidEntityID
	}
	return allocation.NewEntityID(value)
}

func (h *httpHandler) handleGetAllocation(c *gin.Context) {
	entityType, err := allocation.ParseEntityType(c.Param("type"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	entityID, err := parseEntityID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	summary, err := h.allocation.GetAllocationSummary(c.Request.Context(), entityType, entityID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocation": newSummaryPayload(summary)})
}

func (h *httpHandler) handleNominateVessel(c *gin.Context) {
	contractID, err := parseEntityID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var request nominateVesselRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeBadRequest(c, "invalid_json")
		return
	}
	vessel, err := h.allocation.NominateVessel(c.Request.Context(), allocation.NominateVesselRequest{
		ContractID: contractID,
		Name:       request.Name,
		Quantity:   request.Quantity,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vessel": newVesselPayload(vessel)})
}

func (h *httpHandler) handleSetVesselQuantity(c *gin.Context) {
	vesselID, err := parseEntityID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var request quantityRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeBadRequest(c, "invalid_json")
		return
	}
	vessel, err := h.allocation.SetVesselQuantity(c.Request.Context(), vesselID.Int64(), request.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vessel": newVesselPayload(vessel)})
}

func (h *httpHandler) handleSetLetterOfCreditAllocation(c *gin.Context) {
	letterOfCreditID, err := parseEntityID(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	vesselID, err := parseEntityID(c.Param("vesselId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	var request quantityRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		writeBadRequest(c, "invalid_json")
		return
	}
	relation, err := h.allocation.SetLetterOfCreditAllocation(c.Request.Context(), letterOfCreditID, vesselID.Int64(), request.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"letter_of_credit_vessel": letterOfCreditVesselPayload{
		LetterOfCreditID: relation.LetterOfCreditID,
		VesselID:         relation.VesselID,
		Quantity:         relation.Quantity,
	}})
}
