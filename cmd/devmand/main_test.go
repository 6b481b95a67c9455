package main

import (
	"context"
	"testing"
	"time"

	"github.com/samajesteduroyaume/devman/internal/device"
	"github.com/samajesteduroyaume/devman/internal/infrastructure/config"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DEVMAN_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("DEVMAN_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_Env verifies the environment override.
func TestGetConfigPath_Env(t *testing.T) {
	t.Setenv("DEVMAN_CONFIG", "/etc/devman/config.yaml")

	if path := getConfigPath(); path != "/etc/devman/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", path)
	}
}

func TestBuildEnumerators(t *testing.T) {
	cfg := config.BusesConfig{
		PCI: config.PCIBusConfig{
			Enabled: true,
			Functions: []config.PCIFunctionConfig{
				{Bus: 0, Slot: 31, Function: 2, VendorID: 0x8086, DeviceID: 0x2922, Class: 0x01, Subclass: 0x06},
			},
		},
		USB: config.USBBusConfig{
			Enabled: true,
			Ports: []config.USBPortConfig{
				{Bus: 1, Port: 3, VendorID: 0x0781, ProductID: 0x5567, Class: 0x08, Subclass: 0x06, Protocol: 0x50},
			},
		},
		Bluetooth: config.BluetoothBusConfig{
			Enabled: true,
			Devices: []config.BluetoothDeviceConfig{
				{Address: "aa:bb:cc:dd:ee:ff", ClassOfDevice: 0x240404},
			},
		},
		Platform: config.PlatformBusConfig{
			Enabled: true,
			Units: []config.PlatformUnitConfig{
				{Name: "uart0", Class: "unknown"},
			},
		},
	}

	enums, err := buildEnumerators(cfg)
	if err != nil {
		t.Fatalf("buildEnumerators() error: %v", err)
	}
	if len(enums) != 4 {
		t.Fatalf("enumerator count = %d, want 4", len(enums))
	}

	seen := make(map[device.Family]bool)
	for _, e := range enums {
		seen[e.Family()] = true
	}
	for _, family := range device.AllFamilies() {
		if !seen[family] {
			t.Errorf("missing enumerator for %s", family)
		}
	}
}

func TestBuildEnumerators_DisabledFamiliesSkipped(t *testing.T) {
	enums, err := buildEnumerators(config.BusesConfig{})
	if err != nil {
		t.Fatalf("buildEnumerators() error: %v", err)
	}
	if len(enums) != 0 {
		t.Errorf("enumerator count = %d, want 0 with all buses disabled", len(enums))
	}
}

func TestBuildEnumerators_BadPlatformClass(t *testing.T) {
	cfg := config.BusesConfig{
		Platform: config.PlatformBusConfig{
			Enabled: true,
			Units:   []config.PlatformUnitConfig{{Name: "uart0", Class: "teapot"}},
		},
	}
	if _, err := buildEnumerators(cfg); err == nil {
		t.Error("buildEnumerators() should reject unknown platform class")
	}
}

func TestParseBDAddr(t *testing.T) {
	tests := []struct {
		input   string
		want    [6]byte
		wantErr bool
	}{
		{"aa:bb:cc:dd:ee:ff", [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, false},
		{"00:11:22:33:44:55", [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, false},
		{"aa:bb:cc:dd:ee", [6]byte{}, true},
		{"aa:bb:cc:dd:ee:gg", [6]byte{}, true},
		{"", [6]byte{}, true},
	}

	for _, tt := range tests {
		got, err := parseBDAddr(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBDAddr(%q) should fail", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBDAddr(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBDAddr(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
