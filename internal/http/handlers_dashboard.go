package http

import (
	"net/http"

	"savingsbuddy/internal/core"
	applog "savingsbuddy/internal/log"
)

// chartBar is one row of a server-rendered bar chart.
type chartBar struct {
	Label string
	Value core.Money
	Max   int64
}

type dashboardData struct {
	core.Dashboard
	CategoryBars []chartBar
	MonthBars    []chartBar
}

// bars pairs labels with values and scales them against the largest value.
func bars(labels []string, values []core.Money) []chartBar {
	var max int64
	for _, v := range values {
		if v.Cents > max {
			max = v.Cents
		}
	}
	out := make([]chartBar, 0, len(labels))
	for i, l := range labels {
		if i >= len(values) {
			break
		}
		out = append(out, chartBar{Label: l, Value: values[i], Max: max})
	}
	return out
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.records.Dashboard(r.Context(), currentUser(r).ID)
	if err != nil {
		s.serverError(w, r, applog.OpRead, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", "Dashboard", dashboardData{
		Dashboard:    d,
		CategoryBars: bars(d.CategoryLabels, d.CategoryValues),
		MonthBars:    bars(d.MonthLabels, d.MonthValues),
	})
}
