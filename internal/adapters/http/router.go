package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/config"
	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

const maxBodyBytes = 1 << 20

// MetricsRecorder is the subset of the metrics package the router uses.
type MetricsRecorder interface {
	Handler() http.Handler
	Middleware(service string, next http.Handler) http.Handler
	RecordRetrievedChunks(service, endpoint string, count int)
}

type Router struct {
	advisor  ports.Advisor
	searcher ports.Searcher
	feedback ports.FeedbackService
	profiles ports.ProfileStore
	metrics  MetricsRecorder

	topK                int
	apiKey              string
	rateLimitRPS        float64
	rateLimitBurst      int
	maxInFlight         int
	backpressureTimeout time.Duration
}

// NewRouter wires the advisor endpoints. profiles may be nil, in which case
// the profile endpoints answer 404 and ask requests must carry the profile
// inline.
func NewRouter(
	cfg config.Config,
	advisor ports.Advisor,
	searcher ports.Searcher,
	feedback ports.FeedbackService,
	profiles ports.ProfileStore,
) *Router {
	return &Router{
		advisor:             advisor,
		searcher:            searcher,
		feedback:            feedback,
		profiles:            profiles,
		topK:                cfg.RAGTopK,
		apiKey:              cfg.APIKey,
		rateLimitRPS:        cfg.APIRateLimitRPS,
		rateLimitBurst:      cfg.APIRateLimitBurst,
		maxInFlight:         cfg.APIMaxInFlight,
		backpressureTimeout: cfg.APIBackpressureWait,
	}
}

func (rt *Router) WithMetrics(m MetricsRecorder) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/ask", rt.ask)
	mux.HandleFunc("POST /v1/retrieve", rt.retrieve)
	mux.HandleFunc("POST /v1/feedback", rt.submitFeedback)
	mux.HandleFunc("PUT /v1/profiles/{id}", rt.putProfile)
	mux.HandleFunc("GET /v1/profiles/{id}", rt.getProfile)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var h http.Handler = mux
	h = authMiddleware(rt.apiKey, h)
	h = backpressureMiddleware(h, rt.maxInFlight, rt.backpressureTimeout)
	h = rateLimitMiddleware(h, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		h = rt.metrics.Middleware("api", h)
	}
	h = accessLogMiddleware(h)
	return requestIDMiddleware(h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question  string                 `json:"question"`
	ProfileID string                 `json:"profile_id"`
	Profile   *domain.StudentProfile `json:"profile"`
	TopK      int                    `json:"top_k"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, ok := rt.resolveProfile(w, r, req)
	if !ok {
		return
	}

	answer, err := rt.advisor.Ask(r.Context(), profile, req.Question)
	if err != nil {
		rt.writeDomainError(w, r, "ask", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrievedChunks("api", "ask", len(answer.Sources))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, ok := rt.resolveProfile(w, r, req)
	if !ok {
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = rt.topK
	}

	result, err := rt.searcher.Search(r.Context(), profile, req.Question, topK)
	if err != nil {
		rt.writeDomainError(w, r, "retrieve", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetrievedChunks("api", "retrieve", len(result.Chunks))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) resolveProfile(w http.ResponseWriter, r *http.Request, req askRequest) (domain.StudentProfile, bool) {
	if req.Profile != nil {
		return *req.Profile, true
	}
	if req.ProfileID == "" || rt.profiles == nil {
		return domain.StudentProfile{}, true
	}
	p, err := rt.profiles.GetProfile(r.Context(), req.ProfileID)
	if err != nil {
		rt.writeDomainError(w, r, "load profile", err)
		return domain.StudentProfile{}, false
	}
	return *p, true
}

type feedbackRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Helpful  *bool  `json:"helpful"`
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Helpful == nil {
		writeError(w, http.StatusBadRequest, "helpful is required")
		return
	}
	if err := rt.feedback.Submit(r.Context(), req.Question, req.Answer, *req.Helpful); err != nil {
		rt.writeDomainError(w, r, "feedback", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (rt *Router) putProfile(w http.ResponseWriter, r *http.Request) {
	if rt.profiles == nil {
		writeError(w, http.StatusNotFound, "profile storage is not configured")
		return
	}
	var p domain.StudentProfile
	if !decodeJSON(w, r, &p) {
		return
	}
	p = p.WithDefaults()
	p.ID = r.PathValue("id")
	p.UpdatedAt = time.Now().UTC()

	if err := rt.profiles.SaveProfile(r.Context(), p); err != nil {
		rt.writeDomainError(w, r, "save profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	if rt.profiles == nil {
		writeError(w, http.StatusNotFound, "profile storage is not configured")
		return
	}
	p, err := rt.profiles.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeDomainError(w, r, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", op,
			"error", err,
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg)})
}
