package main

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tunnelguard/internal/hardware"
	"github.com/banshee-data/tunnelguard/internal/tunnel"
)

// phaseLevel maps phases onto a y value per subsystem so the timeline chart
// reads as a step plot.
var phaseLevel = map[tunnel.Phase]int{
	tunnel.PhaseIdle:       0,
	tunnel.PhaseQuiet:      1,
	tunnel.PhaseAlert:      2,
	tunnel.PhaseSustained:  3,
	tunnel.PhaseEscalation: 4,
	tunnel.PhaseYellowHold: 1,
	tunnel.PhaseCrossing:   2,
	tunnel.PhaseResume:     3,
	tunnel.PhaseMergeHold:  1,
	tunnel.PhaseMergeGo:    2,
	tunnel.PhaseMergeFlash: 3,
	tunnel.PhaseActive:     1,
}

func (r *Replay) xLabels() []string {
	labels := make([]string, 0, len(r.Statuses))
	for _, s := range r.Statuses {
		labels = append(labels, fmt.Sprintf("%.1f", r.Offset(s).Seconds()))
	}
	return labels
}

// distanceSeries uses "-" for ticks without an echo, which echarts draws as
// a gap.
func (r *Replay) distanceSeries(sensor hardware.SensorID) []opts.LineData {
	out := make([]opts.LineData, 0, len(r.Statuses))
	for _, s := range r.Statuses {
		reading := s.Readings.Get(sensor)
		if !reading.Valid {
			out = append(out, opts.LineData{Value: "-"})
			continue
		}
		out = append(out, opts.LineData{Value: reading.CM})
	}
	return out
}

func (r *Replay) phaseSeries(pick func(tunnel.Status) tunnel.Phase) []opts.LineData {
	out := make([]opts.LineData, 0, len(r.Statuses))
	for _, s := range r.Statuses {
		p := pick(s)
		out = append(out, opts.LineData{Value: phaseLevel[p], Name: string(p)})
	}
	return out
}

func (r *Replay) toneSeries() []opts.LineData {
	out := make([]opts.LineData, 0, len(r.Statuses))
	for _, s := range r.Statuses {
		out = append(out, opts.LineData{Value: s.ToneHz})
	}
	return out
}

// WriteHTML renders an interactive page with the distance, phase and tone
// timelines.
func (r *Replay) WriteHTML(w io.Writer) error {
	x := r.xLabels()
	subtitle := fmt.Sprintf("ticks=%d resets=%d", r.Stats.Ticks, r.Stats.Resets)

	distance := charts.NewLine()
	distance.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tunnel Scenario " + r.Name, Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sensor distances", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cm"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	distance.SetXAxis(x)
	for _, sensor := range hardware.Sensors {
		distance.AddSeries(sensor.String(), r.distanceSeries(sensor))
	}

	phases := charts.NewLine()
	phases.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Subsystem phases"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "phase"}),
	)
	phases.SetXAxis(x)
	for _, col := range phaseColumns {
		phases.AddSeries(col.name, r.phaseSeries(col.pick))
	}

	tone := charts.NewLine()
	tone.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "240px"}),
		charts.WithTitleOpts(opts.Title{Title: "Buzzer"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Hz"}),
	)
	tone.SetXAxis(x).AddSeries("tone", r.toneSeries())

	page := components.NewPage()
	page.PageTitle = "Tunnel Scenario " + r.Name
	page.AddCharts(distance, phases, tone)
	return page.Render(w)
}
