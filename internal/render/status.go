package render

import "fmt"

// StatusInfo is what the device-status screen shows: the connection picture
// at boot and during prolonged disconnection.
type StatusInfo struct {
	Title    string
	Mode     string
	Failures int
	// APAddr is the fallback access-point address, shown when the access
	// point is up so the user knows where to reach the configuration UI.
	APAddr string
	Lines  []string
}

// DrawStatus clears the canvas and renders a centered status screen.
func DrawStatus(fb *Framebuffer, info StatusInfo) {
	fb.Clear(White)

	w := fb.Width()
	y := fb.Height() / 4

	title := info.Title
	if title == "" {
		title = "armoured-candles"
	}
	fb.DrawText((w-TextWidth(title, 3))/2, y, title, 3, Black)
	y += TextHeight(3) + 20

	mode := fmt.Sprintf("network: %s", info.Mode)
	fb.DrawText((w-TextWidth(mode, 2))/2, y, mode, 2, Black)
	y += TextHeight(2) + 12

	if info.Failures > 0 {
		line := fmt.Sprintf("consecutive fetch failures: %d", info.Failures)
		fb.DrawText((w-TextWidth(line, 1))/2, y, line, 1, Black)
		y += TextHeight(1) + 10
	}

	if info.APAddr != "" {
		line := fmt.Sprintf("setup: http://%s/", info.APAddr)
		fb.DrawText((w-TextWidth(line, 2))/2, y, line, 2, Black)
		y += TextHeight(2) + 12
	}

	for _, line := range info.Lines {
		fb.DrawText((w-TextWidth(line, 1))/2, y, line, 1, Black)
		y += TextHeight(1) + 8
	}
}

// DrawUpdateProgress renders firmware-upload progress. Drawn on the panel
// because the requesting browser may lose connectivity mid-flash.
func DrawUpdateProgress(fb *Framebuffer, percent int, failed bool) {
	fb.Clear(White)

	w, h := fb.Width(), fb.Height()
	msg := fmt.Sprintf("updating firmware %d%%", percent)
	if failed {
		msg = "firmware update failed"
	}
	fb.DrawText((w-TextWidth(msg, 2))/2, h/2-40, msg, 2, Black)

	barW := w / 2
	barX := (w - barW) / 2
	barY := h / 2
	fb.Rect(barX, barY, barW, 24, Black)
	if !failed && percent > 0 {
		if percent > 100 {
			percent = 100
		}
		fb.FillRect(barX+2, barY+2, (barW-4)*percent/100, 20, Black)
	}
}
