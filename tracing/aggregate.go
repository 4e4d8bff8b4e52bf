package tracing

import (
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric types
const (
	MetricCounter   = "counter"
	MetricHistogram = "histogram"
)

// sample is one raw observation waiting in the metrics buffer
type sample struct {
	typ   string
	name  string
	value float64
	attrs map[string]string
	at    time.Time
}

// MetricRecord is the wire form of an aggregated metric
type MetricRecord struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Value      float64           `json:"value"`
	Summary    *Summary          `json:"summary,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  string            `json:"timestamp"`
}

// Summary describes the observations of one histogram series
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

type series struct {
	first  sample
	last   time.Time
	values []float64
}

// aggregate folds raw samples into one record per type, name and attribute
// set, in first-seen order. Counter values are summed; histograms are
// summarized.
func aggregate(samples []sample) []MetricRecord {
	index := make(map[string]*series, len(samples))
	var order []string

	for _, s := range samples {
		key := seriesKey(s)
		ser, ok := index[key]
		if !ok {
			ser = &series{first: s}
			index[key] = ser
			order = append(order, key)
		}
		ser.values = append(ser.values, s.value)
		if s.at.After(ser.last) {
			ser.last = s.at
		}
	}

	records := make([]MetricRecord, 0, len(order))
	for _, key := range order {
		ser := index[key]
		rec := MetricRecord{
			Name:       ser.first.name,
			Type:       ser.first.typ,
			Value:      floats.Sum(ser.values),
			Attributes: ser.first.attrs,
			Timestamp:  formatTime(ser.last),
		}
		if rec.Type == MetricHistogram {
			rec.Summary = summarize(ser.values)
		}
		records = append(records, rec)
	}
	return records
}

func summarize(values []float64) *Summary {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return &Summary{
		Count: len(sorted),
		Sum:   floats.Sum(sorted),
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
}

func seriesKey(s sample) string {
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.typ)
	b.WriteByte(0)
	b.WriteString(s.name)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.attrs[k])
	}
	return b.String()
}
