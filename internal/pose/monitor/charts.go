package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/posetrack/internal/httputil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleTraceChart renders the buffered root position and heading as two
// line charts. Debugging only.
func (ws *WebServer) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Trace == nil {
		httputil.NotFound(w, "trace not enabled")
		return
	}
	samples := ws.cfg.Trace.Samples()
	if len(samples) == 0 {
		httputil.NotFound(w, "no samples yet")
		return
	}

	x := make([]string, len(samples))
	var rx, ry, rz, yaw []opts.LineData
	for i, s := range samples {
		x[i] = strconv.FormatUint(s.Seq, 10)
		rx = append(rx, opts.LineData{Value: s.Root.X})
		ry = append(ry, opts.LineData{Value: s.Root.Y})
		rz = append(rz, opts.LineData{Value: s.Root.Z})
		yaw = append(yaw, opts.LineData{Value: s.YawDeg})
	}
	subtitle := samples[len(samples)-1].Timestamp.Format(time.RFC3339)

	root := charts.NewLine()
	root.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pose trace", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Root position", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seq"}),
	)
	root.SetXAxis(x).
		AddSeries("x", rx).
		AddSeries("y", ry).
		AddSeries("z", rz)

	heading := charts.NewLine()
	heading.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "300px"}),
		charts.WithTitleOpts(opts.Title{Title: "Heading (deg)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seq"}),
	)
	heading.SetXAxis(x).AddSeries("yaw", yaw)

	page := components.NewPage()
	page.AddCharts(root, heading)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}
