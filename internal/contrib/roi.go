package contrib

import (
	"fmt"
	"strings"
	"time"

	"uplift/internal/canonical"
	"uplift/internal/dataset"
)

// ChannelROI relates a channel's contribution to its spend. When no spend
// column resolves for the channel, Error is set and the numeric fields stay
// zero.
type ChannelROI struct {
	TotalSpend        float64 `json:"total_spend"`
	TotalContribution float64 `json:"total_contribution"`
	ROI               float64 `json:"roi"`
	ROAS              float64 `json:"roas"`
	Efficiency        string  `json:"efficiency,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// ROIMetrics is the persisted roi_metrics artifact. When the dataset carries
// no spend columns at all, Error is set and Channels stays empty.
type ROIMetrics struct {
	Error    string                `json:"error,omitempty"`
	Channels map[string]ChannelROI `json:"channels"`
}

// ROI computes spend efficiency per channel: ROI and ROAS are both
// contribution over spend. Spend is summed from the canonical series over
// the modeling window only, so contribution and spend cover the same
// periods. A channel whose spend column cannot be resolved gets a
// per-channel error entry; zero spend reports zero ROI and ROAS.
func ROI(summary Summary, series *canonical.Series, window []time.Time) *ROIMetrics {
	metrics := &ROIMetrics{Channels: make(map[string]ChannelROI)}

	hasSpend := false
	for col := range series.Values {
		if strings.HasPrefix(col, dataset.SpendPrefix) {
			hasSpend = true
			break
		}
	}
	if !hasSpend {
		metrics.Error = "No spend columns found in dataset; ROI metrics unavailable"
		return metrics
	}

	windowIdx := make(map[time.Time]struct{}, len(window))
	for _, period := range window {
		windowIdx[period] = struct{}{}
	}

	for channel, channelSummary := range summary.Channels {
		candidates := dataset.SpendColumnCandidates(channel)
		spendCol := candidates[len(candidates)-1]
		var spendVals []float64
		resolved := false
		for _, candidate := range candidates {
			if vals, ok := series.Column(candidate); ok {
				spendCol = candidate
				spendVals = vals
				resolved = true
				break
			}
		}
		if !resolved {
			metrics.Channels[channel] = ChannelROI{
				Error: fmt.Sprintf("no spend column found for %s; expected %s", channel, spendCol),
			}
			continue
		}

		var totalSpend float64
		for t, period := range series.PeriodStart {
			if _, in := windowIdx[period]; in {
				totalSpend += spendVals[t]
			}
		}

		roi := ChannelROI{
			TotalSpend:        totalSpend,
			TotalContribution: channelSummary.TotalContribution,
			Efficiency:        "N/A",
		}
		if totalSpend > 0 {
			ratio := channelSummary.TotalContribution / totalSpend
			roi.ROI = ratio
			roi.ROAS = ratio
			roi.Efficiency = fmt.Sprintf("$%.2f", ratio)
		}
		metrics.Channels[channel] = roi
	}
	return metrics
}
