package ui

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"happycast/domain/backtest"
	"happycast/domain/core"
	"happycast/internal/dashboard"
	"happycast/internal/errors"
)

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(a.started).Round(time.Second).String(),
	})
}

func (a *App) handleYears(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"years":  a.views.Years(),
		"latest": a.views.LatestYear(),
	})
}

func (a *App) handleCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"countries": a.views.Countries(),
		"default":   dashboard.DefaultCountry,
	})
}

func (a *App) handleTop(w http.ResponseWriter, r *http.Request) {
	a.handleRanking(w, r, a.views.Top)
}

func (a *App) handleBottom(w http.ResponseWriter, r *http.Request) {
	a.handleRanking(w, r, a.views.Bottom)
}

func (a *App) handleRanking(w http.ResponseWriter, r *http.Request, rank func(year, n int) []dashboard.Ranked) {
	q := r.URL.Query()
	year, err := intParam(q, "year", a.views.LatestYear())
	if err != nil {
		a.writeError(w, err)
		return
	}
	n, err := intParam(q, "n", dashboard.DefaultRankSize)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":      year,
		"countries": rank(year, n),
	})
}

func (a *App) handleYearMap(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		a.writeError(w, errors.InvalidInput("year must be an integer"))
		return
	}
	writeJSON(w, http.StatusOK, a.views.YearMap(year))
}

func (a *App) handleCountrySeries(w http.ResponseWriter, r *http.Request) {
	s, err := a.views.CountrySeries(countryParam(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *App) handleIncome(w http.ResponseWriter, r *http.Request) {
	s, err := a.views.IncomeVsHappiness(countryParam(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *App) handleTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	years := a.views.Years()
	from, to := 0, 0
	if len(years) > 0 {
		from, to = years[0], years[len(years)-1]
	}

	var err error
	if from, err = intParam(q, "from", from); err != nil {
		a.writeError(w, err)
		return
	}
	if to, err = intParam(q, "to", to); err != nil {
		a.writeError(w, err)
		return
	}

	countries := make([]core.Country, 0, len(q["country"]))
	for _, c := range q["country"] {
		countries = append(countries, core.Country(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":   from,
		"to":     to,
		"trends": a.views.Trends(countries, from, to),
	})
}

// handleBacktest serves the latest persisted table of a model, falling back to
// the summary file in the output directory
func (a *App) handleBacktest(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	ctx := r.Context()

	var table *backtest.ResultTable
	source := "database"
	if a.repo != nil {
		t, err := a.repo.LatestTable(ctx, model)
		switch {
		case err == nil:
			table = t
		case core.IsNotFoundError(err):
			a.logger.Debug("[UI] no persisted run for %s", model)
		default:
			a.logger.Warn("[UI] loading latest %s run failed: %v", model, err)
		}
	}
	if table == nil {
		source = a.summaryPath(model)
		t, err := a.tables.ReadTable(ctx, source)
		if err != nil {
			a.writeError(w, err)
			return
		}
		table = t
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":  model,
		"source": source,
		"table":  table,
	})
}

func (a *App) handleComparison(w http.ResponseWriter, r *http.Request) {
	table, err := a.tables.ReadTable(r.Context(), a.comparisonPath())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func countryParam(r *http.Request) core.Country {
	raw := chi.URLParam(r, "country")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return core.Country(raw)
}

func intParam(q url.Values, key string, fallback int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput(key + " must be an integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := errors.GetCode(err)
	switch {
	case core.IsNotFoundError(err) || code == errors.CodeNotFound:
		status = http.StatusNotFound
		code = errors.CodeNotFound
	case code == errors.CodeInvalidInput:
		status = http.StatusBadRequest
	default:
		a.logger.Error("[UI] request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}
