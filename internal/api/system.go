package api

import (
	"errors"
	"net/http"

	"github.com/samajesteduroyaume/devman/internal/inventory"
)

// handleResourceStats returns current pool utilisation for the IRQ, DMA
// and MMIO pools.
func (s *Server) handleResourceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.ResourceStats())
}

// handleListBuses returns the bus families with a registered enumerator.
func (s *Server) handleListBuses(w http.ResponseWriter, _ *http.Request) {
	families := s.devices.Families()
	writeJSON(w, http.StatusOK, map[string]any{"families": families, "count": len(families)})
}

// handleListInventory returns persisted inventory rows, with the same
// query filters as the live device listing.
func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeNotFound(w, "inventory store not configured")
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	rows, err := s.inventory.List(r.Context(), inventory.Filter{
		Family: f.Family,
		Class:  f.Class,
		State:  f.State,
	})
	if err != nil {
		s.logger.Error("inventory list failed", "error", err)
		writeInternalError(w, "failed to list inventory")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": rows, "count": len(rows)})
}

// handleGetInventory returns a single persisted inventory row.
func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeNotFound(w, "inventory store not configured")
		return
	}

	id, err := idFromURL(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	row, err := s.inventory.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("inventory get failed", "error", err, "device_id", id.String())
		writeInternalError(w, "failed to get inventory row")
		return
	}

	writeJSON(w, http.StatusOK, row)
}
