// ABOUTME: HTTP handlers for the device profile
// ABOUTME: Read, merge-patch, overwrite, clear and completeness detail

package gateway

import (
	"net/http"

	"github.com/2389/tatasbox/internal/profile"
)

func (g *Gateway) registerProfileRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/profile", g.handleGetProfile)
	mux.HandleFunc("PATCH /api/profile", g.handlePatchProfile)
	mux.HandleFunc("PUT /api/profile", g.handlePutProfile)
	mux.HandleFunc("DELETE /api/profile", g.handleDeleteProfile)
	mux.HandleFunc("GET /api/profile/complete", g.handleProfileComplete)
}

type profileResponse struct {
	Profile  *profile.UserProfile `json:"profile"`
	SignedIn bool                 `json:"signedIn"`
	Complete bool                 `json:"complete"`
}

func (g *Gateway) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, profileResponse{
		Profile:  d.Profile.Profile(),
		SignedIn: d.Profile.SignedIn(),
		Complete: d.Profile.IsComplete(),
	})
}

func (g *Gateway) handlePatchProfile(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var patch profile.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		g.fail(w, r, err)
		return
	}
	p, write, err := d.Profile.SetProfile(patch)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeProfile, "update", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, p)
}

func (g *Gateway) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	var full profile.UserProfile
	if err := decodeJSON(w, r, &full); err != nil {
		g.fail(w, r, err)
		return
	}
	p, write, err := d.Profile.OverwriteProfile(full)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if !g.commit(w, r, storeProfile, "overwrite", write) {
		return
	}
	g.writeJSON(w, http.StatusOK, p)
}

func (g *Gateway) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	if !g.commit(w, r, storeProfile, "clear", d.Profile.Clear()) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleProfileComplete(w http.ResponseWriter, r *http.Request) {
	d, ok := g.device(w, r)
	if !ok {
		return
	}
	missing := d.Profile.Missing()
	g.writeJSON(w, http.StatusOK, map[string]any{
		"complete": len(missing) == 0,
		"missing":  missing,
	})
}
