package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/manager"
)

// handleListDevices returns all live registry entries, with optional
// query filters.
//
// Query parameters:
//   - family: filter by bus family (pci, usb, bluetooth, platform)
//   - class: filter by device class (storage_usb, network_ethernet, etc.)
//   - state: filter by lifecycle state (ready, failed, etc.)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	views := s.devices.ListDevices(filter)
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single registry entry by family and address.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	view, err := s.devices.GetDevice(id)
	if err != nil {
		if errors.Is(err, manager.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleRemoveDevice evicts a device from the registry, releasing its
// resources. Only Ready and Failed devices are removable.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.devices.RemoveDevice(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, manager.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, manager.ErrNotRemovable):
			writeConflict(w, "device is mid-transition and cannot be removed")
		default:
			writeInternalError(w, "failed to remove device")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns registry counts broken down by class,
// family, and state.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.GetStats())
}

// idFromURL builds a device ID from the family and address URL parameters.
func idFromURL(r *http.Request) (device.ID, error) {
	family := device.Family(chi.URLParam(r, "family"))
	if !validFamily(family) {
		return device.ID{}, errors.New("unknown bus family")
	}
	address := chi.URLParam(r, "address")
	if address == "" {
		return device.ID{}, errors.New("device address is required")
	}
	return device.ID{Family: family, Address: address}, nil
}

// filterFromQuery parses the family/class/state query filters.
func filterFromQuery(r *http.Request) (manager.Filter, error) {
	var f manager.Filter

	if v := r.URL.Query().Get("family"); v != "" {
		family := device.Family(v)
		if !validFamily(family) {
			return f, errors.New("unknown bus family")
		}
		f.Family = family
	}
	if v := r.URL.Query().Get("class"); v != "" {
		class := device.Class(v)
		if !device.ValidClass(class) {
			return f, errors.New("unknown device class")
		}
		f.Class = class
	}
	if v := r.URL.Query().Get("state"); v != "" {
		f.State = device.State(v)
	}

	return f, nil
}

func validFamily(f device.Family) bool {
	for _, v := range device.AllFamilies() {
		if v == f {
			return true
		}
	}
	return false
}
