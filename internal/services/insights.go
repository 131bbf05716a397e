package services

import (
	"fmt"
	"math"

	"github.com/macrogi/macrogi-server/internal/domain"
)

// Glycemic thresholds (mg/dL) used by the insight rules.
const (
	rangeLow  = 70.0
	rangeHigh = 180.0

	severeLow  = 54.0
	severeHigh = 250.0

	stableCV = 36.0 // coefficient of variation below this counts as stable

	spikeDelta = 50.0 // trough-to-peak rise that counts as a post-meal spike
)

// generateInsights derives pattern observations from 24 h of readings:
// time in range, variability, hypo/hyper episodes, short-term trend, dawn
// phenomenon, post-meal spikes, and the daily average with estimated A1C.
// Pure function of its input; ordering of the returned insights is fixed.
func generateInsights(readings []domain.GlucoseReading) []domain.Insight {
	if len(readings) == 0 {
		return []domain.Insight{{
			Icon:     "info",
			Title:    "No Data",
			Body:     "Not enough readings to generate insights.",
			Severity: "info",
		}}
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}

	n := float64(len(values))
	var sum float64
	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		sum += v
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	avg := sum / n

	var variance float64
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}
	std := math.Sqrt(variance / n)
	cv := 0.0
	if avg > 0 {
		cv = std / avg * 100
	}

	var inRange, below, above int
	for _, v := range values {
		switch {
		case v < rangeLow:
			below++
		case v > rangeHigh:
			above++
		default:
			inRange++
		}
	}
	tirPct := int(math.Round(float64(inRange) / n * 100))
	belowPct := int(math.Round(float64(below) / n * 100))
	abovePct := int(math.Round(float64(above) / n * 100))

	var insights []domain.Insight

	// 1. Time in range
	switch {
	case tirPct >= 70:
		insights = append(insights, domain.Insight{
			Icon: "target", Title: "Time in Range", Severity: "good",
			Body: fmt.Sprintf("%d%% of readings are within target (70-180 mg/dL). This meets the recommended >70%% goal.", tirPct),
		})
	case tirPct >= 50:
		insights = append(insights, domain.Insight{
			Icon: "target", Title: "Time in Range", Severity: "warning",
			Body: fmt.Sprintf("%d%% of readings are within target (70-180 mg/dL). Aim for >70%%. Consider reviewing meal timing and portions.", tirPct),
		})
	default:
		insights = append(insights, domain.Insight{
			Icon: "target", Title: "Time in Range", Severity: "danger",
			Body: fmt.Sprintf("Only %d%% of readings are in range. %d%% above and %d%% below target. This needs attention.", tirPct, abovePct, belowPct),
		})
	}

	// 2. Variability
	if cv < stableCV {
		insights = append(insights, domain.Insight{
			Icon: "variability", Title: "Glucose Stability", Severity: "good",
			Body: fmt.Sprintf("Your glucose variability (CV %.0f%%) is stable. A CV below 36%% indicates consistent glucose levels.", cv),
		})
	} else {
		insights = append(insights, domain.Insight{
			Icon: "variability", Title: "High Glucose Swings", Severity: "warning",
			Body: fmt.Sprintf("Your glucose variability is elevated (CV %.0f%%). Frequent swings between %.0f and %.0f mg/dL. Consider smaller, more frequent meals with lower GI foods.", cv, minVal, maxVal),
		})
	}

	// 3. Hypo episodes
	if below > 0 {
		episodes, lowest := countEpisodes(values, func(v float64) bool { return v < rangeLow }, math.Min)
		severity := "warning"
		body := fmt.Sprintf("Detected %d low glucose episode%s (below 70 mg/dL), reaching as low as %.0f mg/dL.", episodes, plural(episodes), lowest)
		if lowest < severeLow {
			severity = "danger"
			body += " Readings below 54 mg/dL are clinically significant. Review insulin dosing with your care team."
		} else {
			body += " Consider reducing insulin dose before similar activities or having a fast-acting carb on hand."
		}
		insights = append(insights, domain.Insight{Icon: "hypo", Title: "Low Glucose Alert", Body: body, Severity: severity})
	}

	// 4. Hyper episodes
	if above > 0 {
		episodes, peak := countEpisodes(values, func(v float64) bool { return v > rangeHigh }, math.Max)
		severity := "warning"
		body := fmt.Sprintf("Detected %d high glucose episode%s (above 180 mg/dL), peaking at %.0f mg/dL.", episodes, plural(episodes), peak)
		if peak > severeHigh {
			severity = "danger"
			body += " Sustained highs above 250 mg/dL increase risk of complications. Review carb intake and insulin timing."
		} else {
			body += " Post-meal spikes can be reduced by pairing carbs with protein or fat, or taking a short walk after eating."
		}
		insights = append(insights, domain.Insight{Icon: "hyper", Title: "High Glucose Alert", Body: body, Severity: severity})
	}

	// 5. Trend over the last 30 minutes (6 readings at 5-min intervals)
	if len(values) >= 6 {
		recent := values[len(values)-6:]
		diff := recent[5] - recent[0]
		rate := diff / 30
		latest := values[len(values)-1]
		switch {
		case rate > 2:
			insights = append(insights, domain.Insight{
				Icon: "trend_up", Title: "Rapidly Rising", Severity: "warning",
				Body: fmt.Sprintf("Glucose has risen %.0f mg/dL in the last 30 minutes (%.1f mg/dL/min). This may indicate a recent high-GI meal. Consider activity or correction.", diff, rate),
			})
		case rate < -2:
			insights = append(insights, domain.Insight{
				Icon: "trend_down", Title: "Rapidly Dropping", Severity: "warning",
				Body: fmt.Sprintf("Glucose has dropped %.0f mg/dL in the last 30 minutes (%.1f mg/dL/min). Monitor closely and have fast-acting carbs ready if needed.", -diff, -rate),
			})
		case math.Abs(diff) < 10:
			insights = append(insights, domain.Insight{
				Icon: "trend_stable", Title: "Stable Trend", Severity: "good",
				Body: fmt.Sprintf("Glucose has been steady over the last 30 minutes (currently %.0f mg/dL). Your current management is working well.", latest),
			})
		}
	}

	// 6. Dawn phenomenon: early-morning readings elevated vs overnight
	var dawnSum, nightSum float64
	var dawnCount, nightCount int
	for _, r := range readings {
		hour := r.Timestamp.UTC().Hour()
		switch {
		case hour >= 4 && hour < 8:
			dawnSum += r.Value
			dawnCount++
		case hour < 4:
			nightSum += r.Value
			nightCount++
		}
	}
	if dawnCount > 0 && nightCount > 0 {
		dawnAvg := dawnSum / float64(dawnCount)
		nightAvg := nightSum / float64(nightCount)
		if dawnAvg-nightAvg > 20 {
			insights = append(insights, domain.Insight{
				Icon: "dawn", Title: "Dawn Phenomenon", Severity: "info",
				Body: fmt.Sprintf("Your glucose rises an average of %.0f mg/dL between midnight and early morning (%.0f to %.0f mg/dL). This is common and may be managed with basal insulin adjustments.", dawnAvg-nightAvg, nightAvg, dawnAvg),
			})
		}
	}

	// 7. Post-meal spikes: sharp trough-to-peak rises inside sliding 2 h
	// windows (trough over the first 30 min, peak over the following 90 min).
	// More than 10 spiking windows means sustained highs, not distinct spikes.
	if len(values) >= 24 {
		spikeCount := 0
		var maxSpike float64
		for i := 0; i < len(values)-24; i++ {
			window := values[i : i+24]
			trough := window[0]
			for _, v := range window[1:6] {
				trough = math.Min(trough, v)
			}
			peak := window[6]
			for _, v := range window[7:] {
				peak = math.Max(peak, v)
			}
			if spike := peak - trough; spike > spikeDelta {
				spikeCount++
				maxSpike = math.Max(maxSpike, spike)
			}
		}
		if spikeCount > 0 && spikeCount <= 10 {
			insights = append(insights, domain.Insight{
				Icon: "spike", Title: "Post-Meal Spikes Detected", Severity: "warning",
				Body: fmt.Sprintf("Detected glucose spikes of up to %.0f mg/dL after meals. Pre-bolusing insulin 15-20 minutes before eating, or choosing lower-GI foods, can help flatten these spikes.", maxSpike),
			})
		}
	}

	// 8. Daily average and estimated A1C
	estimatedA1C := (avg + 46.7) / 28.7
	switch {
	case avg < 140:
		insights = append(insights, domain.Insight{
			Icon: "average", Title: "Daily Average", Severity: "good",
			Body: fmt.Sprintf("Average glucose today is %.0f mg/dL (estimated A1C: %.1f%%). This is within a healthy range.", avg, estimatedA1C),
		})
	case avg < 180:
		insights = append(insights, domain.Insight{
			Icon: "average", Title: "Daily Average", Severity: "warning",
			Body: fmt.Sprintf("Average glucose today is %.0f mg/dL (estimated A1C: %.1f%%). Slightly elevated. Consider increasing activity or reviewing carb portions.", avg, estimatedA1C),
		})
	default:
		insights = append(insights, domain.Insight{
			Icon: "average", Title: "Daily Average", Severity: "danger",
			Body: fmt.Sprintf("Average glucose today is %.0f mg/dL (estimated A1C: %.1f%%). This is above target and warrants attention to diet and insulin dosing.", avg, estimatedA1C),
		})
	}

	return insights
}

// countEpisodes counts runs of consecutive matching readings and tracks the
// extreme value across them using the given picker (math.Min or math.Max).
func countEpisodes(values []float64, match func(float64) bool, pick func(float64, float64) float64) (int, float64) {
	episodes := 0
	inEpisode := false
	var extreme float64
	first := true
	for _, v := range values {
		if match(v) {
			if !inEpisode {
				episodes++
				inEpisode = true
			}
			if first {
				extreme = v
				first = false
			} else {
				extreme = pick(extreme, v)
			}
		} else {
			inEpisode = false
		}
	}
	return episodes, extreme
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
