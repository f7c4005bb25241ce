package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nami-os/nami/internal/creative"
	"github.com/nami-os/nami/internal/health"
	"github.com/nami-os/nami/internal/observe"
	"github.com/nami-os/nami/internal/session"
	"github.com/nami-os/nami/pkg/audio"
)

// routes builds the control-plane handler: health probes, Prometheus
// metrics, and the JSON API consumed by the companion UI.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	h := health.New(
		health.ChannelChecker(func() string { return a.channel.State().String() }),
		health.APIKeyChecker(func() string { return a.cfg.Live.APIKey }),
	)
	h.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/session", a.handleSessionStatus)
	mux.HandleFunc("POST /v1/session/connect", a.handleConnect)
	mux.HandleFunc("POST /v1/session/disconnect", a.handleDisconnect)
	mux.HandleFunc("POST /v1/session/mute", a.handleMute)

	mux.HandleFunc("GET /v1/personas", a.handlePersonas)
	mux.HandleFunc("POST /v1/personas/activate", a.handleActivatePersona)

	mux.HandleFunc("GET /v1/history", a.handleHistory)
	mux.HandleFunc("GET /v1/notices", a.handleNotices)

	mux.HandleFunc("GET /v1/gallery", a.handleGallery)
	mux.HandleFunc("POST /v1/creative/images", a.handleGenerateImage)
	mux.HandleFunc("POST /v1/creative/videos", a.handleGenerateVideo)
	mux.HandleFunc("GET /v1/assets/{id}", a.handleAsset)

	return observe.Middleware(a.metrics, a.logger)(mux)
}

// sessionStatus is the JSON shape of GET /v1/session.
type sessionStatus struct {
	State             string `json:"state"`
	Muted             bool   `json:"muted"`
	Talking           bool   `json:"talking"`
	Speaking          bool   `json:"speaking"`
	PendingTranscript string `json:"pending_transcript,omitempty"`
	ActivePersona     string `json:"active_persona"`
}

func (a *App) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionStatus{
		State:             a.channel.State().String(),
		Muted:             a.channel.Muted(),
		Talking:           a.channel.Talking(),
		Speaking:          a.channel.Speaking(),
		PendingTranscript: a.channel.PendingTranscript(),
		ActivePersona:     a.personas.Active().ID,
	})
}

func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	err := a.channel.Connect(r.Context())
	switch {
	case errors.Is(err, session.ErrAlreadyConnected):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, audio.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"state": a.channel.State().String()})
	}
}

func (a *App) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	if err := a.channel.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": a.channel.State().String()})
}

func (a *App) handleMute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.channel.SetMuted(req.Muted)
	writeJSON(w, http.StatusOK, map[string]bool{"muted": a.channel.Muted()})
}

// personaInfo is the JSON shape of a single persona in GET /v1/personas.
type personaInfo struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Voice  string `json:"voice"`
	Active bool   `json:"active"`
}

func (a *App) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	active := a.personas.Active().ID
	var infos []personaInfo
	for _, id := range a.personas.IDs() {
		p, ok := a.personas.Get(id)
		if !ok {
			continue
		}
		infos = append(infos, personaInfo{
			ID:     p.ID,
			Label:  p.Label,
			Voice:  p.Voice,
			Active: p.ID == active,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (a *App) handleActivatePersona(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := a.personas.Activate(req.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, personaInfo{ID: p.ID, Label: p.Label, Voice: p.Voice, Active: true})
}

func (a *App) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"utterances": a.channel.History()})
}

func (a *App) handleNotices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.notices.Notices())
}

func (a *App) handleGallery(w http.ResponseWriter, _ *http.Request) {
	if a.studio == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("creative studio disabled"))
		return
	}
	writeJSON(w, http.StatusOK, a.studio.Gallery())
}

func (a *App) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	a.handleGenerate(w, r, creative.KindImage)
}

func (a *App) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	a.handleGenerate(w, r, creative.KindVideo)
}

func (a *App) handleGenerate(w http.ResponseWriter, r *http.Request, kind creative.Kind) {
	if a.studio == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("creative studio disabled"))
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		asset creative.Asset
		err   error
	)
	if kind == creative.KindImage {
		asset, err = a.studio.GenerateImage(r.Context(), req.Prompt)
	} else {
		asset, err = a.studio.GenerateVideo(r.Context(), req.Prompt)
	}
	switch {
	case errors.Is(err, creative.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusCreated, asset)
	}
}

func (a *App) handleAsset(w http.ResponseWriter, r *http.Request) {
	if a.studio == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("creative studio disabled"))
		return
	}
	asset, err := a.studio.Asset(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", asset.MIMEType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
