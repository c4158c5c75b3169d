// Package chart prepares energy series for a usage vs. solar chart.
package chart

import "github.com/energiwatch/energiwatch/pkg/billing"

// Chart is everything a renderer needs for one view.
type Chart struct {
	View       View      `json:"view"`
	Title      string    `json:"title"`
	XAxisTitle string    `json:"xAxisTitle"`
	Labels     []string  `json:"labels"`
	Usage      []float64 `json:"usage"`
	Solar      []float64 `json:"solar"`
}

// Build aggregates usage and solar for view and attaches labels and titles.
func Build(usage, solar []float64, view View, rng billing.Rand) Chart {
	return Chart{
		View:       view,
		Title:      Title(view),
		XAxisTitle: XAxisTitle(view),
		Labels:     Labels(view),
		Usage:      Aggregate(usage, view, Options{}, rng),
		Solar:      Aggregate(solar, view, Options{IsSolar: true}, rng),
	}
}
