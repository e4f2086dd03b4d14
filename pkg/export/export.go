// Package export renders region intensity forecasts as JSON, CSV or an HTML
// line chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/greenplace/core/model"
)

// Row is one forecast hour of one region.
type Row struct {
	Region    string    `json:"region"`
	Hour      int       `json:"hour"`
	Time      time.Time `json:"time"`
	Intensity float64   `json:"gco2_per_kwh"`
}

// Rows flattens forecasts; hour h of each series is stamped start+h.
func Rows(forecasts []model.RegionForecast, start time.Time) []Row {
	var rows []Row
	for _, f := range forecasts {
		for h, v := range f.Values {
			rows = append(rows, Row{
				Region:    f.Region,
				Hour:      h,
				Time:      start.Add(time.Duration(h) * time.Hour).UTC(),
				Intensity: v,
			})
		}
	}
	return rows
}

// WriteJSON writes the forecast rows to w in JSON format.
func WriteJSON(w io.Writer, forecasts []model.RegionForecast, start time.Time) error {
	rows := Rows(forecasts, start)
	if rows == nil {
		rows = []Row{}
	}
	return json.NewEncoder(w).Encode(rows)
}

// WriteCSV writes the forecast rows to w in CSV format.
func WriteCSV(w io.Writer, forecasts []model.RegionForecast, start time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"region", "hour", "time", "gco2_per_kwh"}); err != nil {
		return err
	}
	for _, r := range Rows(forecasts, start) {
		rec := []string{
			r.Region,
			strconv.Itoa(r.Hour),
			r.Time.Format(time.RFC3339),
			strconv.FormatFloat(r.Intensity, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChartHTML renders one line per region. A non-nil decision is shown in
// the subtitle.
func WriteChartHTML(w io.Writer, forecasts []model.RegionForecast, start time.Time, decision *model.ScheduleDecision) error {
	line := charts.NewLine()
	title := opts.Title{Title: "Carbon intensity forecast"}
	if decision != nil {
		title.Subtitle = fmt.Sprintf("best window: %s at %s (avg %.1f gCO2/kWh)",
			decision.Region, decision.StartTimeUTC(), decision.AvgIntensity)
	}
	line.SetGlobalOptions(
		charts.WithTitleOpts(title),
		charts.WithXAxisOpts(opts.XAxis{Name: "Hour (UTC)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "gCO2/kWh"}),
	)

	hours := 0
	for _, f := range forecasts {
		hours = max(hours, len(f.Values))
	}
	xAxis := make([]string, hours)
	for h := range xAxis {
		xAxis[h] = start.Add(time.Duration(h) * time.Hour).UTC().Format("2006-01-02 15:04")
	}
	line.SetXAxis(xAxis)
	for _, f := range forecasts {
		data := make([]opts.LineData, len(f.Values))
		for i, v := range f.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(f.Region, data)
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
