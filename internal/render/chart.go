package render

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Alpha162/armoured-candles/pkg/models"
)

// ChartData is everything one chart needs rendered: the finalized candle
// series with its indicator series and cached summary values.
type ChartData struct {
	Config        models.ChartConfig
	Candles       []models.Candle
	EMAFast       []float64
	EMASlow       []float64
	RSI           []float64
	LastPrice     float64
	PercentChange float64
	FetchedAt     time.Time
}

// Pixel geometry shared by all size classes.
const (
	axisLabelWidth = 54 // right-hand price label gutter
	gridRows       = 6  // horizontal grid lines / sampled label prices
	candleGap      = 2  // shrinks to 1 below the width threshold
	narrowCandle   = 3  // width threshold where the gap drops
)

// classMetrics bundles the per-size-class rendering decisions: margins, font
// scales, and which secondary decorations are drawn at all.
type classMetrics struct {
	margin      int
	headerScale int
	labelScale  int
	legend      bool // EMA legend line
	rsiMidline  bool
	volumeLabel bool
	footer      bool // fetch timestamp
}

func metricsFor(class SizeClass) classMetrics {
	switch class {
	case SizeFull:
		return classMetrics{margin: 10, headerScale: 2, labelScale: 1, legend: true, rsiMidline: true, volumeLabel: true, footer: true}
	case SizeHalf:
		return classMetrics{margin: 8, headerScale: 2, labelScale: 1, rsiMidline: true, volumeLabel: true}
	default:
		return classMetrics{margin: 6, headerScale: 1, labelScale: 1}
	}
}

// DrawChart renders one chart into its viewport. tzOffsetMinutes shifts the
// footer timestamp from UTC.
func DrawChart(fb *Framebuffer, vp Viewport, data ChartData, tzOffsetMinutes int) {
	class := vp.Class(fb.Width(), fb.Height())
	m := metricsFor(class)

	if len(data.Candles) == 0 {
		drawNoData(fb, vp)
		return
	}

	// Header: pair + interval left, last price + percent change right.
	headerY := vp.Y + m.margin
	pair := fmt.Sprintf("%s/%s %s", data.Config.Coin, data.Config.Quote, data.Config.Interval)
	fb.DrawText(vp.X+m.margin, headerY, pair, m.headerScale, Black)

	price := formatPrice(data.LastPrice, pickPrecision(priceLow(data.Candles), priceHigh(data.Candles)))
	summary := fmt.Sprintf("%s %+.2f%%", price, data.PercentChange)
	fb.DrawText(vp.X+vp.W-m.margin-TextWidth(summary, m.headerScale), headerY, summary, m.headerScale, Black)

	top := headerY + TextHeight(m.headerScale) + m.margin/2

	if m.legend {
		top = drawLegend(fb, vp.X+m.margin, top, data.Config, m.labelScale)
	}

	footerH := 0
	if m.footer {
		footerH = TextHeight(m.labelScale) + m.margin/2
	}

	// Vertical split below the header: price pane with an embedded volume
	// strip, then the RSI pane, then an optional footer.
	bottom := vp.Y + vp.H - m.margin - footerH
	paneH := bottom - top
	if paneH < 40 {
		drawNoData(fb, vp)
		return
	}
	rsiH := paneH / 4
	priceBottom := bottom - rsiH - m.margin/2
	volH := (priceBottom - top) / 6

	plot := Viewport{
		X: vp.X + m.margin,
		Y: top,
		W: vp.W - 2*m.margin - axisLabelWidth,
		H: priceBottom - top,
	}
	if plot.W < 2*gridRows || plot.H < 2*gridRows {
		drawNoData(fb, vp)
		return
	}

	low, high := paddedPriceRange(data.Candles)
	drawPriceGrid(fb, plot, low, high, m.labelScale)
	drawVolumeBars(fb, plot, data.Candles, volH, m.volumeLabel, m.labelScale)
	drawCandles(fb, plot, data.Candles, low, high)
	drawEMALine(fb, plot, data.EMAFast, low, high, false)
	drawEMALine(fb, plot, data.EMASlow, low, high, true)
	drawRSIPane(fb, Viewport{X: plot.X, Y: priceBottom + m.margin/2, W: plot.W, H: bottom - priceBottom - m.margin/2}, data.RSI, m.rsiMidline, m.labelScale)

	if m.footer {
		stamp := data.FetchedAt.UTC().Add(time.Duration(tzOffsetMinutes) * time.Minute)
		footer := fmt.Sprintf("updated %s", stamp.Format("2006-01-02 15:04"))
		fb.DrawText(vp.X+m.margin, bottom+m.margin/2, footer, m.labelScale, Black)
	}
}

// drawNoData renders the fixed placeholder for a chart with zero candles and
// performs no further geometry.
func drawNoData(fb *Framebuffer, vp Viewport) {
	fb.Rect(vp.X+2, vp.Y+2, vp.W-4, vp.H-4, Black)
	msg := "NO DATA"
	scale := 2
	fb.DrawText(vp.X+(vp.W-TextWidth(msg, scale))/2, vp.Y+(vp.H-TextHeight(scale))/2, msg, scale, Black)
}

func drawLegend(fb *Framebuffer, x, y int, cfg models.ChartConfig, scale int) int {
	fb.HLine(x, y+TextHeight(scale)/2, 14, Black, Solid)
	x2 := x + 18
	x2 += fb.DrawText(x2, y, fmt.Sprintf("EMA%d", cfg.EMAFast), scale, Black) + 12
	fb.HLine(x2, y+TextHeight(scale)/2, 14, Black, Dashed)
	x2 += 18
	fb.DrawText(x2, y, fmt.Sprintf("EMA%d", cfg.EMASlow), scale, Black)
	return y + TextHeight(scale) + 4
}

func priceLow(candles []models.Candle) float64 {
	low := candles[0].Low
	for _, c := range candles[1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

func priceHigh(candles []models.Candle) float64 {
	high := candles[0].High
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

// paddedPriceRange pads the observed range by 2% each side and floors a
// near-zero range to a minimum span so the affine mapping never blows up.
func paddedPriceRange(candles []models.Candle) (float64, float64) {
	low, high := priceLow(candles), priceHigh(candles)
	span := high - low

	mid := (high + low) / 2
	minSpan := mid * 0.001
	if minSpan <= 0 {
		minSpan = 1e-9
	}
	if span < minSpan {
		low = mid - minSpan/2
		high = mid + minSpan/2
		span = minSpan
	}

	pad := span * 0.02
	return low - pad, high + pad
}

// priceToY maps a price onto plot rows with an affine transform.
func priceToY(plot Viewport, price, low, high float64) int {
	frac := (price - low) / (high - low)
	return plot.Y + plot.H - 1 - int(frac*float64(plot.H-1)+0.5)
}

// pickPrecision chooses the smallest decimal-digit count in [2, 6] keeping
// six evenly spaced sampled prices pairwise distinct after rounding. Falls
// back to 6 when nothing distinguishes them.
func pickPrecision(low, high float64) int {
	samples := make([]float64, gridRows)
	for i := range samples {
		samples[i] = low + (high-low)*float64(i)/float64(gridRows-1)
	}

	for digits := 2; digits <= 6; digits++ {
		distinct := true
		seen := make(map[string]bool, gridRows)
		for _, s := range samples {
			key := strconv.FormatFloat(s, 'f', digits, 64)
			if seen[key] {
				distinct = false
				break
			}
			seen[key] = true
		}
		if distinct {
			return digits
		}
	}
	return 6
}

func formatPrice(v float64, digits int) string {
	return strconv.FormatFloat(v, 'f', digits, 64)
}

func drawPriceGrid(fb *Framebuffer, plot Viewport, low, high float64, labelScale int) {
	digits := pickPrecision(low, high)
	for i := 0; i < gridRows; i++ {
		price := low + (high-low)*float64(i)/float64(gridRows-1)
		y := priceToY(plot, price, low, high)
		fb.HLine(plot.X, y, plot.W, Black, Dotted)
		label := formatPrice(price, digits)
		fb.DrawText(plot.X+plot.W+4, y-TextHeight(labelScale)/2, label, labelScale, Black)
	}
}

// drawCandles renders the candle bodies and wicks across the plot width.
func drawCandles(fb *Framebuffer, plot Viewport, candles []models.Candle, low, high float64) {
	n := len(candles)
	gap := candleGap
	cw := (plot.W - (n-1)*gap) / n
	if cw < narrowCandle {
		gap = 1
		cw = (plot.W - (n-1)*gap) / n
	}
	if cw < 1 {
		cw = 1
	}

	for i, c := range candles {
		x := plot.X + i*(cw+gap)
		wickX := x + cw/2

		yHigh := priceToY(plot, c.High, low, high)
		yLow := priceToY(plot, c.Low, low, high)
		fb.VLine(wickX, yHigh, yLow-yHigh+1, Black, Solid)

		yOpen := priceToY(plot, c.Open, low, high)
		yClose := priceToY(plot, c.Close, low, high)
		top, bot := yOpen, yClose
		if top > bot {
			top, bot = bot, top
		}
		bodyH := bot - top + 1

		if c.Close < c.Open {
			// down candle: solid body
			fb.FillRect(x, top, cw, bodyH, Black)
		} else {
			// up candle: hollow body
			fb.FillRect(x, top, cw, bodyH, White)
			fb.Rect(x, top, cw, bodyH, Black)
		}
	}
}

// drawEMALine plots an indicator series as a polyline across candle centers.
func drawEMALine(fb *Framebuffer, plot Viewport, series []float64, low, high float64, dashed bool) {
	n := len(series)
	if n < 2 {
		return
	}
	step := float64(plot.W-1) / float64(n-1)
	prevX := plot.X
	prevY := priceToY(plot, series[0], low, high)
	for i := 1; i < n; i++ {
		x := plot.X + int(float64(i)*step+0.5)
		y := priceToY(plot, series[i], low, high)
		fb.Line(prevX, prevY, x, y, Black, dashed)
		prevX, prevY = x, y
	}
}

// drawVolumeBars renders the volume strip anchored to the plot's bottom.
func drawVolumeBars(fb *Framebuffer, plot Viewport, candles []models.Candle, volH int, label bool, labelScale int) {
	if volH < 2 {
		return
	}
	maxVol := 0.0
	for _, c := range candles {
		if c.Volume > maxVol {
			maxVol = c.Volume
		}
	}
	if maxVol == 0 {
		return
	}

	n := len(candles)
	gap := candleGap
	cw := (plot.W - (n-1)*gap) / n
	if cw < narrowCandle {
		gap = 1
		cw = (plot.W - (n-1)*gap) / n
	}
	if cw < 1 {
		cw = 1
	}

	bottom := plot.Y + plot.H - 1
	for i, c := range candles {
		h := int(c.Volume / maxVol * float64(volH))
		if h < 1 {
			continue
		}
		x := plot.X + i*(cw+gap)
		fb.FillRect(x, bottom-h+1, cw, h, Black)
	}

	if label {
		fb.DrawText(plot.X+2, bottom-volH-TextHeight(labelScale)-1, "VOL", labelScale, Black)
	}
}

// drawRSIPane plots the oscillator in its own pane below the price plot.
func drawRSIPane(fb *Framebuffer, pane Viewport, rsi []float64, midline bool, labelScale int) {
	if pane.H < 8 || len(rsi) < 2 {
		return
	}
	fb.Rect(pane.X, pane.Y, pane.W, pane.H, Black)

	if midline {
		fb.HLine(pane.X, pane.Y+pane.H/2, pane.W, Black, Dashed)
		fb.DrawText(pane.X+2, pane.Y+2, "RSI", labelScale, Black)
	}

	rsiToY := func(v float64) int {
		return pane.Y + pane.H - 1 - int(v/100*float64(pane.H-1)+0.5)
	}
	n := len(rsi)
	step := float64(pane.W-1) / float64(n-1)
	prevX := pane.X
	prevY := rsiToY(rsi[0])
	for i := 1; i < n; i++ {
		x := pane.X + int(float64(i)*step+0.5)
		y := rsiToY(rsi[i])
		fb.Line(prevX, prevY, x, y, Black, false)
		prevX, prevY = x, y
	}
}
