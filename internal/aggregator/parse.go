package aggregator

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// checkPayload mirrors the JSON document `agent check <name> --json` prints:
// an array with one entry per check instance, each carrying the aggregator
// snapshot for that run.
type checkPayload struct {
	Aggregator struct {
		Metrics []struct {
			Metric string       `json:"metric"`
			Type   string       `json:"type"`
			Host   string       `json:"host"`
			Points [][2]float64 `json:"points"`
			Tags   []string     `json:"tags"`
		} `json:"metrics"`
		ServiceChecks []struct {
			Check    string   `json:"check"`
			HostName string   `json:"host_name"`
			Status   int      `json:"status"`
			Message  string   `json:"message"`
			Tags     []string `json:"tags"`
		} `json:"service_checks"`
	} `json:"aggregator"`
}

// FromCheckJSON parses agent check JSON output into an Aggregator. Each
// point of a metric series becomes one Metric.
func FromCheckJSON(data []byte) (*Aggregator, error) {
	payloads, err := decodePayloads(data)
	if err != nil {
		return nil, err
	}

	var metrics []Metric
	var serviceChecks []ServiceCheck
	for _, payload := range payloads {
		for _, series := range payload.Aggregator.Metrics {
			for _, point := range series.Points {
				metrics = append(metrics, Metric{
					Name:     series.Metric,
					Type:     series.Type,
					Value:    point[1],
					Hostname: series.Host,
					Tags:     series.Tags,
				})
			}
		}
		for _, sc := range payload.Aggregator.ServiceChecks {
			serviceChecks = append(serviceChecks, ServiceCheck{
				Name:     sc.Check,
				Status:   sc.Status,
				Hostname: sc.HostName,
				Message:  sc.Message,
				Tags:     sc.Tags,
			})
		}
	}
	return New(metrics, serviceChecks), nil
}

// decodePayloads tolerates agent log lines printed before the JSON array.
func decodePayloads(data []byte) ([]checkPayload, error) {
	for offset := 0; offset < len(data); {
		idx := bytes.IndexByte(data[offset:], '[')
		if idx < 0 {
			break
		}
		start := offset + idx
		var payloads []checkPayload
		if err := json.Unmarshal(bytes.TrimSpace(data[start:]), &payloads); err == nil {
			return payloads, nil
		}
		offset = start + 1
	}
	return nil, fmt.Errorf("no aggregator JSON document found in check output")
}
