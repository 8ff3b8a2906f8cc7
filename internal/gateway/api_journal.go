// ABOUTME: HTTP handlers for the self-exploration journal
// ABOUTME: Check-ins, dialogue sessions, experiments, monthly reports, exports and settings

package gateway

import (
	"net/http"

	"github.com/2389/tatasbox/internal/journal"
	"github.com/2389/tatasbox/internal/kv"
)

func (g *Gateway) registerJournalRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/journal", g.handleJournalSnapshot)
	mux.HandleFunc("PUT /api/journal/settings", g.handleJournalSettings)

	mux.HandleFunc("GET /api/journal/checkins", g.handleListCheckIns)
	mux.HandleFunc("POST /api/journal/checkins", g.handleAddCheckIn)
	mux.HandleFunc("GET /api/journal/streak", g.handleStreak)

	mux.HandleFunc("GET /api/journal/sessions", g.handleListSessions)
	mux.HandleFunc("POST /api/journal/sessions", g.handleStartSession)
	mux.HandleFunc("DELETE /api/journal/sessions/ephemeral", g.handleResetEphemeral)
	mux.HandleFunc("GET /api/journal/sessions/{id}", g.handleGetSession)
	mux.HandleFunc("POST /api/journal/sessions/{id}/steps", g.handlePushStep)
	mux.HandleFunc("POST /api/journal/sessions/{id}/end", g.handleEndSession)

	mux.HandleFunc("GET /api/journal/experiments", g.handleListExperiments)
	mux.HandleFunc("POST /api/journal/experiments", g.handleCreateExperiment)
	mux.HandleFunc("GET /api/journal/experiments/{id}", g.handleGetExperiment)
	mux.HandleFunc("POST /api/journal/experiments/{id}/ticks", g.handleToggleTick)
	mux.HandleFunc("POST /api/journal/experiments/{id}/complete", g.handleFinishExperiment(journal.ExperimentDone))
	mux.HandleFunc("POST /api/journal/experiments/{id}/abandon", g.handleFinishExperiment(journal.ExperimentAbandoned))

	mux.HandleFunc("GET /api/journal/reports", g.handleListReports)
	mux.HandleFunc("GET /api/journal/reports/{month}", g.handleGetReport)
	mux.HandleFunc("POST /api/journal/reports/{month}", g.handleComputeReport)
	mux.HandleFunc("POST /api/journal/reports/{month}/gift", g.handleUnlockGift)
	mux.HandleFunc("GET /api/journal/reports/{month}/export", g.handleExportReport)
}

// monthParam resolves the {month} path value; "current" means this UTC month.
func monthParam(r *http.Request, j *journal.Store) string {
	month := r.PathValue("month")
	if month == "current" {
		return j.CurrentMonth()
	}
	return month
}

func (g *Gateway) handleJournalSnapshot(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	st := d.Journal.Snapshot()
	st.Sessions = d.Journal.Sessions()
	g.writeJSON(w, http.StatusOK, st)
}

func (g *Gateway) handleJournalSettings(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req struct {
		PrivacyDefault *journal.PrivacyLevel `json:"privacyDefault"`
		Language       *string               `json:"language"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}

	var writes []*kv.Write
	if req.PrivacyDefault != nil {
		write, err := d.Journal.SetPrivacyDefault(*req.PrivacyDefault)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writes = append(writes, write)
	}
	if req.Language != nil {
		write, err := d.Journal.SetLanguage(*req.Language)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 && !g.commit(w, r, storeJournal, "settings", writes...) {
		return
	}
	g.writeJSON(w, http.StatusOK, d.Journal.Settings())
}

func (g *Gateway) handleListCheckIns(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, d.Journal.CheckIns())
}

func (g *Gateway) handleAddCheckIn(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var in journal.NewCheckIn
	if err := decodeJSON(w, r, &in); err != nil {
		g.fail(w, r, err)
		return
	}
	c, write, err := d.Journal.AddCheckIn(in)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "checkin", write) {
		return
	}
	g.writeJSON(w, http.StatusCreated, map[string]any{
		"checkIn": c,
		"streak":  d.Journal.Streak(),
	})
}

func (g *Gateway) handleStreak(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]int{"streak": d.Journal.RefreshStreak()})
}

func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, d.Journal.Sessions())
}

func (g *Gateway) handleStartSession(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req struct {
		Path    journal.DialoguePath `json:"path"`
		Privacy journal.PrivacyLevel `json:"privacy"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	sess, write, err := d.Journal.StartSession(req.Path, req.Privacy)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "session.start", write) {
		return
	}
	g.writeJSON(w, http.StatusCreated, sess)
}

func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	sess, err := d.Journal.Session(r.PathValue("id"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, sess)
}

func (g *Gateway) handlePushStep(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var in journal.NewStep
	if err := decodeJSON(w, r, &in); err != nil {
		g.fail(w, r, err)
		return
	}
	sess, write, err := d.Journal.PushStep(r.PathValue("id"), in)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "session.step", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, sess)
}

func (g *Gateway) handleEndSession(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	sess, write, err := d.Journal.EndSession(r.PathValue("id"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "session.end", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, sess)
}

func (g *Gateway) handleResetEphemeral(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	removed := d.Journal.ResetEphemeralSessions()
	if removed > 0 && !g.commit(w, r, storeJournal, "session.reset") {
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (g *Gateway) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, d.Journal.Experiments())
}

func (g *Gateway) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var in journal.NewExperiment
	if err := decodeJSON(w, r, &in); err != nil {
		g.fail(w, r, err)
		return
	}
	exp, write, err := d.Journal.CreateExperiment(in)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "experiment.create", write) {
		return
	}
	g.writeJSON(w, http.StatusCreated, exp)
}

func (g *Gateway) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	exp, err := d.Journal.Experiment(r.PathValue("id"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, exp)
}

func (g *Gateway) handleToggleTick(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date"`
		Note string `json:"note"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	exp, write, err := d.Journal.ToggleTick(r.PathValue("id"), req.Date, req.Note)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "experiment.tick", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, exp)
}

func (g *Gateway) handleFinishExperiment(status journal.ExperimentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := g.device(w, r)
		if !ok {
			return
		}

		finish := d.Journal.CompleteExperiment
		if status == journal.ExperimentAbandoned {
			finish = d.Journal.AbandonExperiment
		}

		exp, write, err := finish(r.PathValue("id"))
		if err != nil {
			g.fail(w, r, err)
			return
		}
		if !g.commit(w, r, storeJournal, "experiment."+string(status), write) {
			return
		}
		g.writeJSON(w, http.StatusOK, exp)
	}
}

func (g *Gateway) handleListReports(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, d.Journal.Reports())
}

func (g *Gateway) handleGetReport(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	report, err := d.Journal.Report(monthParam(r, d.Journal))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.writeJSON(w, http.StatusOK, report)
}

func (g *Gateway) handleComputeReport(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	report, write, err := d.Journal.ComputeMonthlyReport(monthParam(r, d.Journal))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "report.compute", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, report)
}

func (g *Gateway) handleUnlockGift(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	report, write, err := d.Journal.UnlockGift(monthParam(r, d.Journal))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeJournal, "report.gift", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, report)
}

func (g *Gateway) handleExportReport(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	month := monthParam(r, d.Journal)

	var (
		body        string
		contentType string
		err         error
	)
	switch r.URL.Query().Get("format") {
	case "", "md", "markdown":
		body, err = d.Journal.ExportMarkdown(month)
		contentType = "text/markdown; charset=utf-8"
	case "html":
		body, err = d.Journal.ExportHTML(month)
		contentType = "text/html; charset=utf-8"
	default:
		g.sendJSONError(w, http.StatusBadRequest, "format must be md or html")
		return
	}
	if err != nil {
		g.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
