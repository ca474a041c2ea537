package controller

import (
	"net/http"
)

func (c controller) getStats(w http.ResponseWriter, r *http.Request) {
	if c.statsRepo == nil {
		c.writeJSON(w, http.StatusServiceUnavailable, envelope{"error": "statistics are disabled"})
		return
	}

	totals, err := c.statsRepo.GetTotals(r.Context())
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to get stats", "error", err)
		c.writeJSON(w, http.StatusInternalServerError, envelope{"error": "failed to get stats"})
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": totals})
}
