// ABOUTME: HTTP handlers for the theme preference and the roleplay scratch setup
// ABOUTME: Roleplay lives in memory only, so its handlers publish events without waiting on writes

package gateway

import (
	"net/http"

	"github.com/2389/tatasbox/internal/prefs"
	"github.com/2389/tatasbox/internal/roleplay"
)

func (g *Gateway) registerPrefsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/prefs/theme", g.handleGetTheme)
	mux.HandleFunc("PUT /api/prefs/theme", g.handleSetTheme)
	mux.HandleFunc("POST /api/prefs/theme/toggle", g.handleToggleTheme)
}

func (g *Gateway) registerRoleplayRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/roleplay", g.handleGetRoleplay)
	mux.HandleFunc("PUT /api/roleplay", g.handleSetRoleplay)
	mux.HandleFunc("DELETE /api/roleplay", g.handleClearRoleplay)
}

type themeBody struct {
	Theme prefs.Theme `json:"theme"`
}

func (g *Gateway) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, themeBody{Theme: d.Prefs.Theme()})
}

func (g *Gateway) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var req themeBody
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	write, err := d.Prefs.SetTheme(req.Theme)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storePrefs, "theme", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, themeBody{Theme: req.Theme})
}

func (g *Gateway) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	theme, write := d.Prefs.Toggle()
	if !g.commit(w, r, storePrefs, "theme", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, themeBody{Theme: theme})
}

func (g *Gateway) handleGetRoleplay(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]*roleplay.Setup{"temp": d.Roleplay.Temp()})
}

func (g *Gateway) handleSetRoleplay(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var setup roleplay.Setup
	if err := decodeJSON(w, r, &setup); err != nil {
		g.fail(w, r, err)
		return
	}
	d.Roleplay.SetTemp(setup)
	g.commit(w, r, storeRoleplay, "set")
	g.writeJSON(w, http.StatusOK, map[string]*roleplay.Setup{"temp": d.Roleplay.Temp()})
}

func (g *Gateway) handleClearRoleplay(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	d.Roleplay.Clear()
	g.commit(w, r, storeRoleplay, "clear")
	w.WriteHeader(http.StatusNoContent)
}
