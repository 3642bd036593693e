package datastore

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxDBStore implements telemetry storage using InfluxDB, one point
// per TelemetryData snapshot under the "vehicle_telemetry" measurement.
type InfluxDBStore struct {
	client   influxdb2.Client
	org      string
	bucket   string
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// NewInfluxDBStore creates a new InfluxDB-backed store and pings the
// server to fail fast on a bad URL or token.
func NewInfluxDBStore(url, token, org, bucket string) (*InfluxDBStore, error) {
	client := influxdb2.NewClient(url, token)

	store := &InfluxDBStore{
		client:   client,
		org:      org,
		bucket:   bucket,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
	}

	if _, err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("datastore: connecting to InfluxDB: %w", err)
	}

	return store, nil
}

func (s *InfluxDBStore) SaveTelemetry(vin string, data *TelemetryData) error {
	point := influxdb2.NewPoint(
		"vehicle_telemetry",
		map[string]string{
			"vin": vin,
		},
		map[string]interface{}{
			"coolant_temp":      data.CoolantTemp,
			"fuel_pressure":     data.FuelPressure,
			"rpm":               data.RPM,
			"speed":             data.Speed,
			"maf":               data.MAF,
			"throttle_position": data.ThrottlePos,
			"run_time":          data.RunTime,
			"commanded_egr":     data.CommandedEGR,
			"fuel_level":        data.FuelLevel,
			"o2_voltage":        data.O2Voltage,
		},
		data.Timestamp,
	)

	if err := s.writeAPI.WritePoint(context.Background(), point); err != nil {
		return fmt.Errorf("datastore: writing telemetry: %w", err)
	}
	return nil
}

func (s *InfluxDBStore) GetTelemetry(vin string, start, end time.Time) ([]*TelemetryData, error) {
	query := fmt.Sprintf(`
		from(bucket:"%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r["_measurement"] == "vehicle_telemetry" and r["vin"] == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, s.bucket, start.Format(time.RFC3339), end.Format(time.RFC3339), vin)

	result, err := s.queryAPI.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("datastore: querying telemetry: %w", err)
	}
	defer result.Close()

	var data []*TelemetryData
	for result.Next() {
		data = append(data, telemetryFromRecord(vin, result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("datastore: querying telemetry: %w", err)
	}
	return data, nil
}

func (s *InfluxDBStore) GetLatestTelemetry(vin string) (*TelemetryData, error) {
	query := fmt.Sprintf(`
		from(bucket:"%s")
			|> range(start: -1h)
			|> filter(fn: (r) => r["_measurement"] == "vehicle_telemetry" and r["vin"] == "%s")
			|> last()
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, s.bucket, vin)

	result, err := s.queryAPI.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("datastore: querying latest telemetry: %w", err)
	}
	defer result.Close()

	if !result.Next() {
		return nil, fmt.Errorf("datastore: no telemetry found for VIN %s", vin)
	}
	return telemetryFromRecord(vin, result.Record()), nil
}

// recordValue is the minimal surface telemetryFromRecord needs from a
// query result row.
type recordValue interface {
	Time() time.Time
	ValueByKey(key string) interface{}
}

func telemetryFromRecord(vin string, record recordValue) *TelemetryData {
	return &TelemetryData{
		Timestamp:    record.Time(),
		VIN:          vin,
		CoolantTemp:  floatField(record, "coolant_temp"),
		FuelPressure: floatField(record, "fuel_pressure"),
		RPM:          floatField(record, "rpm"),
		Speed:        floatField(record, "speed"),
		MAF:          floatField(record, "maf"),
		ThrottlePos:  floatField(record, "throttle_position"),
		RunTime:      floatField(record, "run_time"),
		CommandedEGR: floatField(record, "commanded_egr"),
		FuelLevel:    floatField(record, "fuel_level"),
		O2Voltage:    floatField(record, "o2_voltage"),
	}
}

func floatField(record recordValue, key string) float64 {
	v, ok := record.ValueByKey(key).(float64)
	if !ok {
		return 0
	}
	return v
}

func (s *InfluxDBStore) Close() error {
	s.client.Close()
	return nil
}
