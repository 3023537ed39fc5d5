// Package charts renders interactive HTML charts of collection rankings.
package charts

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ramonehamilton/nft-rarity/internal/rarity"
	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title    string
	Subtitle string
	Width    string // e.g. "900px"
	Height   string
	Theme    string
	Smooth   bool // line charts only
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:  "900px",
		Height: "500px",
		Theme:  "light",
		Smooth: true,
	}
}

// tierColors gives each tier a fixed color across charts.
var tierColors = map[rarity.Tier]string{
	rarity.TierLegendary: "#EE6666",
	rarity.TierEpic:      "#9A60B4",
	rarity.TierRare:      "#5470C6",
	rarity.TierUncommon:  "#91CC75",
	rarity.TierCommon:    "#A0A7B4",
}

func globalOptions(config ChartConfig, xName, yName string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	}
}

// RenderTierDistribution writes a bar chart of item counts per tier.
func RenderTierDistribution(w io.Writer, dist []models.TierCount, config ChartConfig) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(config, "Tier", "Items")...)

	labels := make([]string, len(dist))
	data := make([]opts.BarData, len(dist))
	for i, tc := range dist {
		labels[i] = tc.Tier.DisplayName()
		data[i] = opts.BarData{
			Name:      labels[i],
			Value:     tc.Count,
			ItemStyle: &opts.ItemStyle{Color: tierColors[tc.Tier]},
		}
	}

	bar.SetXAxis(labels).
		AddSeries("Items", data).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{
			Show:     opts.Bool(true),
			Position: "top",
		}))

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render tier chart: %w", err)
	}
	return nil
}

// RenderScoreCurve writes a line chart of score by rank. scores must be in
// rank order.
func RenderScoreCurve(w io.Writer, scores []float64, config ChartConfig) error {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOptions(config, "Rank", "Score")...)

	labels := make([]string, len(scores))
	data := make([]opts.LineData, len(scores))
	for i, s := range scores {
		labels[i] = fmt.Sprintf("%d", i+1)
		data[i] = opts.LineData{Value: s}
	}

	line.SetXAxis(labels).
		AddSeries("Score", data).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth:     opts.Bool(config.Smooth),
				ShowSymbol: opts.Bool(len(scores) <= 100),
			}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
		)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render score chart: %w", err)
	}
	return nil
}
