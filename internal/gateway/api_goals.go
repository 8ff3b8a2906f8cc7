// ABOUTME: HTTP handlers for goals and the identity statement
// ABOUTME: Listing in display or stored order plus add, edit, toggle and remove

package gateway

import (
	"net/http"

	"github.com/2389/tatasbox/internal/goals"
	"github.com/2389/tatasbox/internal/kv"
)

func (g *Gateway) registerGoalsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/goals", g.handleListGoals)
	mux.HandleFunc("POST /api/goals", g.handleAddGoal)
	mux.HandleFunc("DELETE /api/goals", g.handleClearGoals)
	mux.HandleFunc("PUT /api/goals/identity", g.handleSetIdentity)
	mux.HandleFunc("PATCH /api/goals/{id}", g.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", g.handleRemoveGoal)
	mux.HandleFunc("POST /api/goals/{id}/done", g.handleToggleGoal(goalDone))
	mux.HandleFunc("POST /api/goals/{id}/pin", g.handleToggleGoal(goalPin))
}

type goalsResponse struct {
	Identity string       `json:"identity"`
	Goals    []goals.Goal `json:"goals"`
}

func (g *Gateway) handleListGoals(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}

	var list []goals.Goal
	switch r.URL.Query().Get("order") {
	case "", "display":
		list = d.Goals.Sorted()
	case "stored":
		list = d.Goals.Goals()
	default:
		g.sendJSONError(w, http.StatusBadRequest, "order must be display or stored")
		return
	}
	g.writeJSON(w, http.StatusOK, goalsResponse{Identity: d.Goals.Identity(), Goals: list})
}

func (g *Gateway) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	goal, write, err := d.Goals.AddGoal(req.Text, req.Image)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeGoals, "add", write) {
		return
	}
	g.writeJSON(w, http.StatusCreated, goal)
}

func (g *Gateway) handleClearGoals(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	if !g.commit(w, r, storeGoals, "clear", d.Goals.ClearAll()) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req struct {
		Identity string `json:"identity"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeGoals, "identity", d.Goals.SetIdentity(req.Identity)) {
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"identity": d.Goals.Identity()})
}

func (g *Gateway) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req struct {
		Text  *string `json:"text"`
		Image *string `json:"image"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}

	id := r.PathValue("id")
	var (
		goal   goals.Goal
		writes []*kv.Write
	)
	if req.Text != nil {
		updated, write, err := d.Goals.UpdateText(id, *req.Text)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		goal, writes = updated, append(writes, write)
	}
	if req.Image != nil {
		updated, write, err := d.Goals.SetImage(id, *req.Image)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		goal, writes = updated, append(writes, write)
	}
	if len(writes) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if !g.commit(w, r, storeGoals, "update", writes...) {
		return
	}
	g.writeJSON(w, http.StatusOK, goal)
}

func (g *Gateway) handleRemoveGoal(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	write, err := d.Goals.RemoveGoal(r.PathValue("id"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeGoals, "remove", write) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type goalToggle int

const (
	goalDone goalToggle = iota
	goalPin
)

func (g *Gateway) handleToggleGoal(which goalToggle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := g.device(w, r)
		if !ok {
			return
		}

		toggle, action := d.Goals.ToggleDone, "done"
		if which == goalPin {
			toggle, action = d.Goals.TogglePin, "pin"
		}

		goal, write, err := toggle(r.PathValue("id"))
		if err != nil {
			g.fail(w, r, err)
			return
		}
		if !g.commit(w, r, storeGoals, action, write) {
			return
		}
		g.writeJSON(w, http.StatusOK, goal)
	}
}
