package entity

import (
	"fmt"
	"time"
)

// ResultTable holds detections in the order they were found along the timeline.
type ResultTable struct {
	detections []Detection
}

func NewResultTable() *ResultTable {
	return &ResultTable{}
}

func (t *ResultTable) Append(d Detection) {
	t.detections = append(t.detections, d)
}

func (t *ResultTable) Len() int {
	return len(t.detections)
}

// Detections returns a copy of the accumulated rows.
func (t *ResultTable) Detections() []Detection {
	out := make([]Detection, len(t.detections))
	copy(out, t.detections)
	return out
}

func (t *ResultTable) Header() []string {
	return []string{"Time", "Timestamp (s)", "Source"}
}

func (t *ResultTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.detections))
	for _, d := range t.detections {
		rows = append(rows, []string{d.Time, fmt.Sprintf("%.2f", d.TimestampSec), string(d.Source)})
	}
	return rows
}

// TotalTime sums every detected race time. An empty table yields ErrNoData.
func (t *ResultTable) TotalTime() (time.Duration, error) {
	if len(t.detections) == 0 {
		return 0, ErrNoData
	}

	var total time.Duration
	for _, d := range t.detections {
		v, err := ParseTime(d.Time)
		if err != nil {
			return 0, fmt.Errorf("sum detection at %.2fs: %w", d.TimestampSec, err)
		}
		total += v
	}
	return total, nil
}
