package main

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tunnelguard/internal/fsutil"
	"github.com/banshee-data/tunnelguard/internal/hardware"
)

var sensorColors = map[hardware.SensorID]color.Color{
	hardware.SensorApproach: color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	hardware.SensorEntrance: color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	hardware.SensorSideRoad: color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
}

// distanceRuns splits a sensor's readings into contiguous runs of valid
// echoes so gaps are not drawn as lines.
func (r *Replay) distanceRuns(sensor hardware.SensorID) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for _, s := range r.Statuses {
		reading := s.Readings.Get(sensor)
		if !reading.Valid {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: r.Offset(s).Seconds(), Y: reading.CM})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func (r *Replay) tonePoints() plotter.XYs {
	pts := make(plotter.XYs, 0, len(r.Statuses))
	for _, s := range r.Statuses {
		pts = append(pts, plotter.XY{X: r.Offset(s).Seconds(), Y: float64(s.ToneHz)})
	}
	return pts
}

// WritePlots renders <name>-distances.png and <name>-tone.png into dir. It
// returns the number of files written.
func (r *Replay) WritePlots(fsys fsutil.FileSystem, dir string, threshold float64) (int, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}
	if len(r.Statuses) == 0 {
		return 0, nil
	}

	pDist := plot.New()
	pDist.Title.Text = fmt.Sprintf("%s - Sensor Distances", r.Name)
	pDist.X.Label.Text = "Time (s)"
	pDist.Y.Label.Text = "Distance (cm)"

	for _, sensor := range hardware.Sensors {
		for i, pts := range r.distanceRuns(sensor) {
			line, err := plotter.NewLine(pts)
			if err != nil {
				return 0, err
			}
			line.Color = sensorColors[sensor]
			line.Width = vg.Points(1)
			pDist.Add(line)
			if i == 0 {
				pDist.Legend.Add(sensor.String(), line)
			}
		}
	}

	limit := plotter.NewFunction(func(float64) float64 { return threshold })
	limit.Color = color.Gray{Y: 0x80}
	limit.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	pDist.Add(limit)
	pDist.Legend.Add("threshold", limit)
	pDist.X.Min = 0
	pDist.X.Max = r.Duration.Seconds()

	pTone := plot.New()
	pTone.Title.Text = fmt.Sprintf("%s - Buzzer", r.Name)
	pTone.X.Label.Text = "Time (s)"
	pTone.Y.Label.Text = "Frequency (Hz)"

	toneLine, err := plotter.NewLine(r.tonePoints())
	if err != nil {
		return 0, err
	}
	toneLine.Width = vg.Points(1)
	pTone.Add(toneLine)
	pTone.X.Min = 0
	pTone.X.Max = r.Duration.Seconds()

	for _, p := range []*plot.Plot{pDist, pTone} {
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
	}

	stem := fsutil.SafeName(r.Name)
	if err := savePNG(fsys, pDist, 14*vg.Inch, 6*vg.Inch, filepath.Join(dir, stem+"-distances.png")); err != nil {
		return 0, fmt.Errorf("save distance plot: %w", err)
	}
	if err := savePNG(fsys, pTone, 14*vg.Inch, 4*vg.Inch, filepath.Join(dir, stem+"-tone.png")); err != nil {
		return 1, fmt.Errorf("save tone plot: %w", err)
	}
	return 2, nil
}

func savePNG(fsys fsutil.FileSystem, p *plot.Plot, w, h vg.Length, name string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return err
	}
	f, err := fsys.Create(name)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
