package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"repo-scan/analysis"
	"repo-scan/checks"
	"repo-scan/storage"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type Storage interface {
	ListPackageScoresFiltered(ctx context.Context, name string, minPercentage *float64) ([]storage.PackageScore, error)
	GetPackageScore(ctx context.Context, name string) (storage.PackageScore, error)
	UpsertPackageScore(ctx context.Context, score storage.PackageScore) error
	DeletePackageScore(ctx context.Context, name string) error
}

type DataManager interface {
	AnalyzeRepository(ctx context.Context, repoURL string) (*analysis.Response, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

type Handler struct {
	Store       Storage
	DataManager DataManager
	Log         *logrus.Logger
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.WithError(err).Error("encoding response")
	}
}

// Analyze reads repo_url from the form body. Repositories without
// dependencies are answered with a 400 carrying a message.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	repoURL := r.FormValue("repo_url")

	resp, err := h.DataManager.AnalyzeRepository(r.Context(), repoURL)
	if err != nil {
		h.Log.WithError(err).WithField("repo_url", repoURL).Error("analyzing repository")
		h.writeJSON(w, http.StatusInternalServerError, analysis.NewMessage("internal server error"))
		return
	}

	status := http.StatusOK
	if resp.Kind() != analysis.KindSummary {
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	minStr := r.URL.Query().Get("min_percentage")

	var minPercentage *float64
	if minStr != "" {
		if v, err := strconv.ParseFloat(minStr, 64); err == nil {
			minPercentage = &v
		} else {
			http.Error(w, "invalid min_percentage value", http.StatusBadRequest)
			return
		}
	}

	scores, err := h.Store.ListPackageScoresFiltered(r.Context(), name, minPercentage)
	if err != nil {
		h.Log.WithError(err).Error("listing package scores with filters")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if scores == nil {
		scores = []storage.PackageScore{}
	}

	h.writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "missing path parameters", http.StatusBadRequest)
		return
	}

	score, err := h.Store.GetPackageScore(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "package not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.Log.WithField("name", name).WithError(err).Error("fetching package score")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, score)
}

type PackageScoreUpdateRequest struct {
	Typosquatting        *int `json:"typosquatting,omitempty"`
	SupplyChain          *int `json:"supply_chain,omitempty"`
	CodeInjection        *int `json:"code_injection,omitempty"`
	CredentialHarvesting *int `json:"credential_harvesting,omitempty"`
}

// UpdatePackage overrides check flags on a cached score. The percentage is
// recomputed from the resulting flags and the score counts as freshly checked.
func (h *Handler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "missing path parameters", http.StatusBadRequest)
		return
	}

	var input PackageScoreUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	for _, flag := range []*int{input.Typosquatting, input.SupplyChain, input.CodeInjection, input.CredentialHarvesting} {
		if flag != nil && *flag != 0 && *flag != 1 {
			http.Error(w, "invalid check flag", http.StatusBadRequest)
			return
		}
	}

	current, err := h.Store.GetPackageScore(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "package not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.Log.WithField("name", name).WithError(err).Error("fetching package score")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if input.Typosquatting != nil {
		current.Typosquatting = *input.Typosquatting
	}
	if input.SupplyChain != nil {
		current.SupplyChain = *input.SupplyChain
	}
	if input.CodeInjection != nil {
		current.CodeInjection = *input.CodeInjection
	}
	if input.CredentialHarvesting != nil {
		current.CredentialHarvesting = *input.CredentialHarvesting
	}
	current.VulnerabilityPercentage = checks.Result{
		Typosquatting:        current.Typosquatting,
		SupplyChain:          current.SupplyChain,
		CodeInjection:        current.CodeInjection,
		CredentialHarvesting: current.CredentialHarvesting,
	}.Percentage()
	current.CheckedAt = time.Now().UTC()

	if err := h.Store.UpsertPackageScore(r.Context(), current); err != nil {
		h.Log.WithError(err).Error("updating package score")
		http.Error(w, "failed to update package score", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, current)
}

func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "missing path parameters", http.StatusBadRequest)
		return
	}

	if err := h.Store.DeletePackageScore(r.Context(), name); err != nil {
		h.Log.WithError(err).Error("deleting package score")
		http.Error(w, "failed to delete package score", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PurgeHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := h.DataManager.PurgeExpired(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to purge package scores")
		http.Error(w, "failed to purge package scores", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
