package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEnumerationDuration records how long one bus scan took.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - family: Bus family scanned (e.g., "pci", "usb")
//   - seconds: Wall-clock duration of the scan
//   - found: Number of descriptors the scan reported
func (c *Client) WriteEnumerationDuration(family string, seconds float64, found int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"enumeration",
		map[string]string{
			"family": family,
		},
		map[string]interface{}{
			"duration_seconds": seconds,
			"devices_found":    found,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceCounts records the registry population broken down by state.
//
// Parameters:
//   - total: Devices currently in the registry
//   - ready: Devices in the ready state
//   - failed: Devices in the failed state
func (c *Client) WriteDeviceCounts(total, ready, failed int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"devices",
		nil,
		map[string]interface{}{
			"total":  total,
			"ready":  ready,
			"failed": failed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoolUtilisation records resource pool usage.
//
// Parameters:
//   - pool: Pool name ("irq", "dma", "mmio")
//   - used: Units currently allocated
//   - capacity: Total units in the pool
func (c *Client) WritePoolUtilisation(pool string, used, capacity uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"resource_pools",
		map[string]string{
			"pool": pool,
		},
		map[string]interface{}{
			"used":     used,
			"capacity": capacity,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "devman-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
