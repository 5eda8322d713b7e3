package debug

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// Charts 曲线绘制
type Charts struct {
	Recorder
}

func newLine(title, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
		charts.WithAnimation(true),
	)
	return line
}

// fillSeries 把按步组织的记录转置为按列组织的曲线
func fillSeries(line *charts.Line, names []string, rows [][]float64, steps int) {
	items := make([][]opts.LineData, len(names))
	series := make([]charts.SingleSeries, len(names))
	for i, name := range names {
		items[i] = make([]opts.LineData, steps)
		series[i] = charts.SingleSeries{
			Name: name,
			Data: items[i],
			Type: types.ChartLine,
		}
		series[i].InitSeriesDefaultOpts(line.BaseConfiguration)
	}
	for step, row := range rows {
		for col, v := range row {
			items[col][step].Value = v
		}
	}
	line.MultiSeries = series
}

// Render 格式化输出为单页 HTML
func (c *Charts) Render(w io.Writer) error {
	if len(c.Time) == 0 {
		return fmt.Errorf("记录为空")
	}
	steps := len(c.Time)

	lineE := newLine("方程曲线", "命名值随时间变化曲线")
	lineE.SetXAxis(c.Time)
	fillSeries(lineE, c.Names, c.Values, steps)

	lineV := newLine("电压曲线", "电路节点电压随时间变化曲线")
	lineV.SetXAxis(c.Time)
	fillSeries(lineV, c.NodeStr, c.Voltage, steps)

	lineA := newLine("电流曲线", "电压源电流随时间变化曲线")
	lineA.SetXAxis(c.Time)
	fillSeries(lineA, c.CurrentStr, c.Current, steps)

	page := components.NewPage()
	page.AddCharts(
		lineE,
		lineV,
		lineA,
	)
	return page.Render(w)
}

// Handler 发布到网页面
func (c *Charts) Handler(w http.ResponseWriter, _ *http.Request) {
	if err := c.Render(w); err != nil {
		c.Error(err)
	}
}

func (c *Charts) Error(err error) { log.Println(err) }
