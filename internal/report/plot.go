package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/carloswaibl/algotrader/internal/market"
)

const plotDPI = 300

var (
	priceColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	equityColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

func nyTime(v float64) time.Time {
	return time.Unix(int64(v), 0).In(market.NewYork())
}

func linePlot(title, ylabel string, pts plotter.XYs, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04", Time: nyTime}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// SavePlot draws the underlying close above the equity curve and writes a
// PNG to path.
func SavePlot(path, title string, bars []market.Bar, curve []market.EquityPoint) error {
	if len(bars) == 0 || len(curve) == 0 {
		return fmt.Errorf("nothing to plot")
	}

	prices := make(plotter.XYs, len(bars))
	for i, b := range bars {
		prices[i].X = float64(b.Timestamp.Unix())
		prices[i].Y = b.Close
	}
	equity := make(plotter.XYs, len(curve))
	for i, p := range curve {
		equity[i].X = float64(p.Date.Unix())
		equity[i].Y = p.Equity
	}

	top, err := linePlot(title, "Close", prices, priceColor)
	if err != nil {
		return fmt.Errorf("price plot: %w", err)
	}
	bottom, err := linePlot("", "Equity", equity, equityColor)
	if err != nil {
		return fmt.Errorf("equity plot: %w", err)
	}

	img := vgimg.NewWith(vgimg.UseWH(10*vg.Inch, 8*vg.Inch), vgimg.UseDPI(plotDPI))
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter, PadY: 3 * vg.Millimeter, PadTop: vg.Millimeter, PadBottom: vg.Millimeter, PadLeft: vg.Millimeter, PadRight: vg.Millimeter}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating plot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return fmt.Errorf("writing png: %w", err)
	}
	return nil
}
