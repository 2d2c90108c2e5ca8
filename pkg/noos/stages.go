package noos

import (
	"math"
	"time"

	"github.com/retaildata/noosengine/pkg/params"
	"github.com/retaildata/noosengine/pkg/storage/postgres"
)

// substituteDefaults replaces any out-of-range or non-finite parameter
// value with the documented built-in default, returning the corrected
// snapshot plus the names of the fields it corrected so the run's
// recorded parameter summary can surface the substitution.
func substituteDefaults(p *postgres.AlgorithmParameters) (*postgres.AlgorithmParameters, []string) {
	out := *p
	var substituted []string
	if !validRate(out.LiquidationThreshold) {
		out.LiquidationThreshold = params.Defaults.LiquidationThreshold
		substituted = append(substituted, "liquidationThreshold")
	}
	if !(out.BestsellerMultiplier >= 1.0) || math.IsInf(out.BestsellerMultiplier, 1) {
		out.BestsellerMultiplier = params.Defaults.BestsellerMultiplier
		substituted = append(substituted, "bestsellerMultiplier")
	}
	if !(out.MinVolumeThreshold >= 0) || math.IsInf(out.MinVolumeThreshold, 1) {
		out.MinVolumeThreshold = params.Defaults.MinVolumeThreshold
		substituted = append(substituted, "minVolumeThreshold")
	}
	if !validRate(out.ConsistencyThreshold) {
		out.ConsistencyThreshold = params.Defaults.ConsistencyThreshold
		substituted = append(substituted, "consistencyThreshold")
	}
	if out.CoreDurationMonths < 1 || out.CoreDurationMonths > 24 {
		out.CoreDurationMonths = params.Defaults.CoreDurationMonths
		substituted = append(substituted, "coreDurationMonths")
	}
	if out.BestsellerDurationDays < 1 || out.BestsellerDurationDays > 365 {
		out.BestsellerDurationDays = params.Defaults.BestsellerDurationDays
		substituted = append(substituted, "bestsellerDurationDays")
	}
	return &out, substituted
}

func validRate(v float64) bool {
	return v >= 0.0 && v <= 1.0
}

// cleanupLiquidation discards sales whose effective discount rate
// exceeds threshold. A threshold of 0 disables
// cleanup entirely.
func cleanupLiquidation(sales []*postgres.SalesRecord, threshold float64) (survivors []*postgres.SalesRecord, discarded int) {
	if threshold == 0 {
		return sales, 0
	}
	survivors = make([]*postgres.SalesRecord, 0, len(sales))
	for _, s := range sales {
		denom := s.Revenue + s.Discount
		rate := 0.0
		if denom != 0 {
			rate = s.Discount / denom
		}
		if rate > threshold {
			discarded++
			continue
		}
		survivors = append(survivors, s)
	}
	return survivors, discarded
}

type joinedSale struct {
	sale  *postgres.SalesRecord
	style *postgres.Style
}

// joinToStyle resolves each sale's SKU to its Style, dropping (with a
// counted warning, not an error) any sale whose SKU no longer maps to a
// known style.
func joinToStyle(sales []*postgres.SalesRecord, styleBySKU map[string]*postgres.Style) (joined []joinedSale, dropped int) {
	joined = make([]joinedSale, 0, len(sales))
	for _, s := range sales {
		style, ok := styleBySKU[s.SKU]
		if !ok {
			dropped++
			continue
		}
		joined = append(joined, joinedSale{sale: s, style: style})
	}
	return joined, dropped
}

// windowDays computes daysAvailable: the declared analysis window span,
// or the span of observed sale dates when the window is unbounded.
func windowDays(p *postgres.AlgorithmParameters, sales []*postgres.SalesRecord) int {
	if p.AnalysisStartDate != nil && p.AnalysisEndDate != nil {
		days := int(p.AnalysisEndDate.Sub(*p.AnalysisStartDate).Hours()/24) + 1
		if days < 1 {
			days = 1
		}
		return days
	}
	if len(sales) == 0 {
		return 1
	}
	min, max := sales[0].SaleDate, sales[0].SaleDate
	for _, s := range sales {
		if s.SaleDate.Before(min) {
			min = s.SaleDate
		}
		if s.SaleDate.After(max) {
			max = s.SaleDate
		}
	}
	days := int(max.Sub(min).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// aggregate accumulates per-style totals from the joined sales and
// computes styleROS against the shared daysAvailable window: total
// quantity, total revenue, distinct sale days, the
// quantity-weighted mean discount, and ROS.
func aggregate(joined []joinedSale, daysAvailable int) map[string]*styleAgg {
	aggs := make(map[string]*styleAgg)
	for _, j := range joined {
		agg, ok := aggs[j.style.StyleCode]
		if !ok {
			agg = &styleAgg{style: j.style, daysWithSales: map[string]bool{}}
			aggs[j.style.StyleCode] = agg
		}
		agg.totalQuantity += j.sale.Quantity
		agg.totalRevenue += j.sale.Revenue
		agg.discountSum += j.sale.Discount * float64(j.sale.Quantity)
		agg.daysWithSales[j.sale.SaleDate.Format(time.RFC3339)[:10]] = true
	}
	for _, agg := range aggs {
		agg.styleROS = float64(agg.totalQuantity) / float64(daysAvailable)
	}
	return aggs
}

type styleAgg struct {
	style         *postgres.Style
	totalQuantity int
	totalRevenue  float64
	discountSum   float64 // quantity-weighted
	daysWithSales map[string]bool
	styleROS      float64
}

type categoryBenchmark struct {
	avgROS  float64
	revenue float64
}

// categoryBenchmarks computes, per category, the mean styleROS and total
// revenue across its styles.
func categoryBenchmarks(aggs map[string]*styleAgg) map[string]*categoryBenchmark {
	type acc struct {
		sumROS  float64
		count   int
		revenue float64
	}
	byCategory := make(map[string]*acc)
	for _, agg := range aggs {
		a, ok := byCategory[agg.style.Category]
		if !ok {
			a = &acc{}
			byCategory[agg.style.Category] = a
		}
		a.sumROS += agg.styleROS
		a.count++
		a.revenue += agg.totalRevenue
	}
	result := make(map[string]*categoryBenchmark, len(byCategory))
	for cat, a := range byCategory {
		result[cat] = &categoryBenchmark{avgROS: a.sumROS / float64(a.count), revenue: a.revenue}
	}
	return result
}

// classify computes each style's revenue contribution and assigns its
// label under the strict tie-break order Core > Bestseller > Fashion.
func classify(aggs map[string]*styleAgg, benchmarks map[string]*categoryBenchmark, p *postgres.AlgorithmParameters, daysAvailable int) []*StyleResult {
	results := make([]*StyleResult, 0, len(aggs))
	for code, agg := range aggs {
		bench := benchmarks[agg.style.Category]
		avgDiscount := 0.0
		if agg.totalQuantity > 0 {
			avgDiscount = agg.discountSum / float64(agg.totalQuantity)
		}
		revContribution := 0.0
		if bench != nil && bench.revenue != 0 {
			revContribution = 100 * agg.totalRevenue / bench.revenue
		}
		daysWithSales := len(agg.daysWithSales)
		categoryAvgROS := 0.0
		if bench != nil {
			categoryAvgROS = bench.avgROS
		}

		classification := classifyOne(agg, avgDiscount, daysWithSales, daysAvailable, categoryAvgROS, p)

		results = append(results, &StyleResult{
			StyleCode:            code,
			Category:             agg.style.Category,
			Type:                 classification,
			StyleROS:             agg.styleROS,
			StyleRevContribution: revContribution,
			TotalQuantitySold:    agg.totalQuantity,
			TotalRevenue:         agg.totalRevenue,
			DaysAvailable:        daysAvailable,
			DaysWithSales:        daysWithSales,
			AvgDiscount:          avgDiscount,
		})
	}
	return results
}

func classifyOne(agg *styleAgg, avgDiscount float64, daysWithSales, daysAvailable int, categoryAvgROS float64, p *postgres.AlgorithmParameters) Classification {
	consistency := float64(daysWithSales) / float64(daysAvailable)
	if consistency >= p.ConsistencyThreshold &&
		float64(agg.totalQuantity) >= p.MinVolumeThreshold &&
		avgDiscount <= p.LiquidationThreshold*agg.style.MRP {
		return ClassCore
	}
	if agg.styleROS >= p.BestsellerMultiplier*categoryAvgROS && float64(agg.totalQuantity) >= p.MinVolumeThreshold {
		return ClassBestseller
	}
	return ClassFashion
}
