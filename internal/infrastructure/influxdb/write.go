package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementStateChange = "rf_state_change"
	MeasurementEavesdrop   = "rf_eavesdrop"
	MeasurementRadio       = "rf_radio"
)

// WriteStateChange records one device state transition.
//
// Tags are low cardinality (path, class, source); the state itself is a
// string field.
func (c *Client) WriteStateChange(path, class, state, source string, at time.Time) {
	c.WritePointWithTime(MeasurementStateChange,
		map[string]string{
			"path":   path,
			"class":  class,
			"source": source,
		},
		map[string]any{"state": state},
		at,
	)
}

// WriteCounters records a set of monotonically increasing counters, such as
// recognizer or arbiter statistics.
func (c *Client) WriteCounters(measurement string, tags map[string]string, counters map[string]uint64) {
	fields := make(map[string]any, len(counters))
	for name, v := range counters {
		fields[name] = v
	}
	c.WritePoint(measurement, tags, fields)
}

// WritePoint writes a point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
