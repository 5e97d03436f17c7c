package handlers

import (
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/golang/glog"

	"github.com/imuhira/listings/internal/api/middleware"
	"github.com/imuhira/listings/internal/storage"
	"github.com/imuhira/listings/internal/storage/models"
)

// Dashboard renders charts over the active listings: how many there are of
// each kind, and the average asking price per location.
func Dashboard(repo *storage.ListingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listings, err := repo.List(r.Context(), models.ListingFilter{ActiveOnly: true})
		if err != nil {
			glog.Errorf("Loading dashboard listings failed: %v", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load listings")
			return
		}

		page := components.NewPage()
		page.PageTitle = "Listings"
		page.AddCharts(kindPie(listings), priceBar(listings))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Render(w); err != nil {
			glog.Errorf("Rendering dashboard failed: %v", err)
		}
	}
}

func kindPie(listings []models.Listing) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Listings by Type"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	counts := make(map[models.ListingKind]int)
	for _, l := range listings {
		counts[l.Kind]++
	}

	items := make([]opts.PieData, 0, len(models.ValidKinds))
	for _, kind := range models.ValidKinds {
		items = append(items, opts.PieData{Name: kind.Label(), Value: counts[kind]})
	}
	pie.AddSeries("Listings", items)
	return pie
}

func priceBar(listings []models.Listing) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Average Price by Location"}))

	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, l := range listings {
		totals[l.Location] += l.Price
		counts[l.Location]++
	}

	locations := make([]string, 0, len(counts))
	for loc := range counts {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	values := make([]opts.BarData, 0, len(locations))
	for _, loc := range locations {
		values = append(values, opts.BarData{Value: totals[loc] / float64(counts[loc])})
	}
	bar.SetXAxis(locations).AddSeries("Average price", values)
	return bar
}
