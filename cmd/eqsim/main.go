package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/johnnewto/circuitjs1-sub000/debug"
	_ "github.com/johnnewto/circuitjs1-sub000/element"
	"github.com/johnnewto/circuitjs1-sub000/mna"
)

func main() {
	var (
		file    = flag.String("f", "", "电路网表文件；缺省从标准输入读取")
		steps   = flag.Int("steps", 1000, "仿真步数")
		dt      = flag.Float64("dt", 5e-6, "时间步长(秒)")
		maxIter = flag.Int("maxiter", 5000, "单步最大迭代次数")
		watch   = flag.String("watch", "", "采样的命名值，逗号分隔；缺省采样全部")
		out     = flag.String("o", "", "输出 HTML 曲线文件")
		png     = flag.String("png", "", "输出 PNG 曲线文件")
		serve   = flag.String("serve", "", "发布曲线页面的监听地址，如 :8080")
		verbose = flag.Bool("v", false, "输出调试日志")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	))

	if err := run(*file, *steps, *dt, *maxIter, *watch, *out, *png, *serve); err != nil {
		slog.Error("仿真失败", "err", err)
		os.Exit(1)
	}
}

func run(file string, steps int, dt float64, maxIter int, watch, out, png, serve string) error {
	var src io.Reader = os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	cfg := mna.DefaultConfig()
	cfg.Timestep = dt
	cfg.MaxIter = maxIter

	sim, err := mna.Load(src, cfg)
	if err != nil {
		return fmt.Errorf("装载网表: %w", err)
	}
	defer sim.Reset()

	charts := &debug.Charts{}
	if watch != "" {
		charts.Watch = strings.Split(watch, ",")
	}
	if err := charts.Run(sim, steps); err != nil {
		return err
	}
	slog.Info("仿真完成",
		"步数", sim.StepCount,
		"时间", sim.T,
		"末步迭代", sim.LastIters,
		"命名值", len(charts.Names),
	)

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := charts.Render(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("已输出曲线页面", "文件", out)
	}
	if png != "" {
		p := &debug.Plot{Recorder: charts.Recorder}
		if err := p.SavePNG(png); err != nil {
			return err
		}
		slog.Info("已输出曲线图", "文件", png)
	}
	if serve != "" {
		slog.Info("发布曲线页面", "地址", serve)
		http.HandleFunc("/", charts.Handler)
		return http.ListenAndServe(serve, nil)
	}
	return nil
}
