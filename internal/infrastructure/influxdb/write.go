package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAirQuality writes an air quality sensor reading to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - site: Site identifier from config (tags the measurement)
//   - pm10, pm25: Particulate matter in ug/m3
//   - co2: CO2 concentration in ppm
//   - voc: Volatile organic compounds
//   - temperature: Ambient temperature in Celsius
//   - humidity: Relative humidity in percent
func (c *Client) WriteAirQuality(site string, pm10, pm25 byte, co2, voc uint16, temperature, humidity byte) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"air_quality",
		map[string]string{
			"site": site,
		},
		map[string]interface{}{
			"pm10":        int(pm10),
			"pm25":        int(pm25),
			"co2":         int(co2),
			"voc":         int(voc),
			"temperature": int(temperature),
			"humidity":    int(humidity),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteClimate writes a climate device temperature reading.
//
// Used for both thermostats and air conditioners so room temperature
// history can be graphed per device.
//
// Parameters:
//   - site: Site identifier from config
//   - device: Device kind ("thermostat" or "air_conditioner")
//   - room: Room number the device serves
//   - current: Measured room temperature in Celsius
//   - target: Setpoint in Celsius
//   - on: Whether the device is powered on
func (c *Client) WriteClimate(site, device string, room byte, current, target byte, on bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"climate",
		map[string]string{
			"site":   site,
			"device": device,
			"room":   strconv.Itoa(int(room)),
		},
		map[string]interface{}{
			"current_temp": int(current),
			"target_temp":  int(target),
			"on":           on,
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
//	client.WritePoint("bus_stats",
//	    map[string]string{"site": "home"},
//	    map[string]interface{}{"frames_rx": 1042, "checksum_errors": 3})
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
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
