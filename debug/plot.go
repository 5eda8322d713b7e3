package debug

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot 静态曲线图
// 与 Charts 采样同一份记录，输出 PNG 便于归档对比
type Plot struct {
	Recorder
}

func (c *Plot) build() (*plot.Plot, error) {
	if len(c.Time) == 0 {
		return nil, fmt.Errorf("记录为空")
	}
	p := plot.New()
	p.Title.Text = "方程曲线"
	p.X.Label.Text = "t/s"
	p.Y.Label.Text = "值"
	p.Legend.Top = true

	for i, name := range c.Names {
		xys := make(plotter.XYs, len(c.Time))
		for step, t := range c.Time {
			xys[step].X = t
			xys[step].Y = c.Values[step][i]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("曲线 %q: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p, nil
}

// WritePNG 渲染 PNG 并写入 w
func (c *Plot) WritePNG(w io.Writer) error {
	p, err := c.build()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG 渲染 PNG 到文件
func (c *Plot) SavePNG(path string) error {
	p, err := c.build()
	if err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
