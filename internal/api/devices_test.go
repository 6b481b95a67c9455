package api

import (
	"net/http"
	"testing"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/manager"
	"github.com/samajesteduroyaume/devman/internal/resource"
)

func TestHandleListDevices(t *testing.T) {
	svc := &fakeDeviceService{
		views: []manager.View{
			sampleView(device.FamilyPCI, "00:1f.2", device.ClassStorageAta, device.StateReady),
			sampleView(device.FamilyUSB, "1-3", device.ClassStorageUsb, device.StateReady),
			sampleView(device.FamilyUSB, "1-4", device.ClassStorageUsb, device.StateFailed),
		},
	}
	_, h := newTestServer(t, svc)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCount float64
	}{
		{"all devices", "/api/v1/devices", http.StatusOK, 3},
		{"filter by family", "/api/v1/devices?family=usb", http.StatusOK, 2},
		{"filter by class", "/api/v1/devices?class=storage_ata", http.StatusOK, 1},
		{"filter by state", "/api/v1/devices?state=failed", http.StatusOK, 1},
		{"combined filters", "/api/v1/devices?family=usb&state=ready", http.StatusOK, 1},
		{"no match", "/api/v1/devices?family=bluetooth", http.StatusOK, 0},
		{"unknown family", "/api/v1/devices?family=isa", http.StatusBadRequest, 0},
		{"unknown class", "/api/v1/devices?class=quantum", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodGet, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var body map[string]any
			decodeBody(t, rec, &body)
			if got := body["count"].(float64); got != tt.wantCount {
				t.Errorf("count = %v, want %v", got, tt.wantCount)
			}
		})
	}
}

func TestHandleGetDevice(t *testing.T) {
	svc := &fakeDeviceService{
		views: []manager.View{
			sampleView(device.FamilyPCI, "00:1f.2", device.ClassStorageAta, device.StateReady),
		},
	}
	_, h := newTestServer(t, svc)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/devices/pci/00:1f.2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var view manager.View
	decodeBody(t, rec, &view)
	if view.ID.Address != "00:1f.2" {
		t.Errorf("address = %q, want 00:1f.2", view.ID.Address)
	}
	if view.Class != device.ClassStorageAta {
		t.Errorf("class = %q, want storage_ata", view.Class)
	}
}

func TestHandleGetDevice_NotFound(t *testing.T) {
	_, h := newTestServer(t, &fakeDeviceService{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/devices/usb/9-9")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetDevice_UnknownFamily(t *testing.T) {
	_, h := newTestServer(t, &fakeDeviceService{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/devices/isa/0x220")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRemoveDevice(t *testing.T) {
	svc := &fakeDeviceService{
		views: []manager.View{
			sampleView(device.FamilyUSB, "1-3", device.ClassStorageUsb, device.StateReady),
		},
	}
	_, h := newTestServer(t, svc)

	rec := doRequest(t, h, http.MethodDelete, "/api/v1/devices/usb/1-3")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(svc.removed) != 1 || svc.removed[0].Address != "1-3" {
		t.Errorf("removed = %v, want [usb/1-3]", svc.removed)
	}
}

func TestHandleRemoveDevice_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", manager.ErrDeviceNotFound, http.StatusNotFound},
		{"mid transition", manager.ErrNotRemovable, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, &fakeDeviceService{removeErr: tt.err})
			rec := doRequest(t, h, http.MethodDelete, "/api/v1/devices/usb/1-3")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleDeviceStats(t *testing.T) {
	svc := &fakeDeviceService{
		stats: manager.Stats{
			Total:   2,
			ByClass: map[device.Class]int{device.ClassStorageUsb: 2},
			ByFamily: map[device.Family]int{
				device.FamilyUSB: 2,
			},
			ByState: map[device.State]int{device.StateReady: 2},
		},
	}
	_, h := newTestServer(t, svc)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/devices/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats manager.Stats
	decodeBody(t, rec, &stats)
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByState[device.StateReady] != 2 {
		t.Errorf("ready count = %d, want 2", stats.ByState[device.StateReady])
	}
}

func TestHandleResourceStats(t *testing.T) {
	svc := &fakeDeviceService{
		resStats: resource.Stats{
			IRQCapacity: 16,
			IRQUsed:     3,
			DMACapacity: 8,
			MMIOTotal:   1 << 26,
			MMIOUsed:    1 << 20,
			MMIOFree:    (1 << 26) - (1 << 20),
		},
	}
	_, h := newTestServer(t, svc)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/resources")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats resource.Stats
	decodeBody(t, rec, &stats)
	if stats.IRQUsed != 3 {
		t.Errorf("irq used = %d, want 3", stats.IRQUsed)
	}
	if stats.MMIOTotal != 1<<26 {
		t.Errorf("mmio total = %d, want %d", stats.MMIOTotal, 1<<26)
	}
}

func TestHandleListBuses(t *testing.T) {
	svc := &fakeDeviceService{
		families: []device.Family{device.FamilyPCI, device.FamilyUSB},
	}
	_, h := newTestServer(t, svc)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/buses")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Families []device.Family `json:"families"`
		Count    int             `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
}
