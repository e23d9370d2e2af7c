// dive-plot renders depth and velocity charts for an exported Garmin
// activity: an interactive HTML page per session plus optional static
// PNGs per dive for reports.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
	"github.com/osamu-dazaai/garmin-freediving-coach/internal/garmin"
)

func main() {
	var activityPath string
	var outDir string
	var renderPNG bool

	flag.StringVar(&activityPath, "activity", "", "exported Garmin activity JSON")
	flag.StringVar(&outDir, "out", "plots", "output directory")
	flag.BoolVar(&renderPNG, "png", false, "also render static PNGs per dive")
	flag.Parse()

	if activityPath == "" {
		log.Fatal("dive-plot: -activity is required")
	}

	export, err := garmin.LoadActivityFile(activityPath)
	if err != nil {
		log.Fatalf("dive-plot: %v", err)
	}
	dives, err := garmin.SplitDives(export)
	if err != nil {
		log.Fatalf("dive-plot: %v", err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalf("dive-plot: create output dir: %v", err)
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Activity %s", export.ActivityID)

	for _, pd := range dives {
		phases, err := dive.Segment(pd.Trace)
		if err != nil {
			log.Printf("dive %d skipped: %v", pd.Number, err)
			continue
		}
		page.AddCharts(diveChart(pd, phases))

		if renderPNG {
			pngPath := filepath.Join(outDir, fmt.Sprintf("dive-%02d.png", pd.Number))
			if err := savePNG(pd, pngPath); err != nil {
				log.Fatalf("dive-plot: render %s: %v", pngPath, err)
			}
			fmt.Printf("wrote %s\n", pngPath)
		}
	}

	htmlPath := filepath.Join(outDir, fmt.Sprintf("activity-%s.html", export.ActivityID))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("dive-plot: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("dive-plot: render page: %v", err)
	}
	fmt.Printf("wrote %s\n", htmlPath)
}

// diveChart builds one depth+velocity line chart. Depth is plotted
// negative so the trace reads the way divers expect, surface on top.
func diveChart(pd garmin.ParsedDive, phases []dive.Phase) *charts.Line {
	velocities := pd.Trace.VelocityProfile(dive.DefaultSmoothingWindow)

	x := make([]string, len(pd.Trace.Samples))
	depths := make([]opts.LineData, len(pd.Trace.Samples))
	vels := make([]opts.LineData, len(pd.Trace.Samples))
	for i, s := range pd.Trace.Samples {
		x[i] = fmt.Sprintf("%.0fs", s.TimeOffset)
		depths[i] = opts.LineData{Value: -s.Depth}
		vels[i] = opts.LineData{Value: velocities[i]}
	}

	subtitle := fmt.Sprintf("max %.1fm over %.0fs", pd.Lap.MaxDepth, pd.Lap.Duration)
	for _, p := range phases {
		subtitle += fmt.Sprintf("  |  %s %.0fs", p.Kind, p.Duration)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Dive %d", pd.Number),
			Subtitle: subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("depth (m)", depths).
		AddSeries("velocity (m/s)", vels,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)
	return line
}

// savePNG renders a static depth profile with gonum/plot.
func savePNG(pd garmin.ParsedDive, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Dive %d - Depth Profile", pd.Number)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Depth (m)"

	depthPts := make(plotter.XYs, len(pd.Trace.Samples))
	for i, s := range pd.Trace.Samples {
		depthPts[i].X = s.TimeOffset
		depthPts[i].Y = -s.Depth
	}
	depthLine, err := plotter.NewLine(depthPts)
	if err != nil {
		return err
	}
	depthLine.Width = vg.Points(1.5)
	depthLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(depthLine)
	p.Legend.Add("depth", depthLine)

	velocities := pd.Trace.VelocityProfile(dive.DefaultSmoothingWindow)
	velPts := make(plotter.XYs, len(velocities))
	for i, v := range velocities {
		velPts[i].X = pd.Trace.Samples[i].TimeOffset
		velPts[i].Y = v
	}
	velLine, err := plotter.NewLine(velPts)
	if err != nil {
		return err
	}
	velLine.Width = vg.Points(1)
	velLine.Color = color.RGBA{R: 255, G: 82, B: 82, A: 255}
	p.Add(velLine)
	p.Legend.Add("velocity", velLine)

	p.Legend.Top = true

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
