// Package chi exposes the course-material pipeline over HTTP.
package chi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edurag/internal/domain"
	dommat "github.com/kailas-cloud/edurag/internal/domain/material"
	logpkg "github.com/kailas-cloud/edurag/internal/logger"
	generationuc "github.com/kailas-cloud/edurag/internal/usecase/generation"
	"github.com/kailas-cloud/edurag/internal/usecase/grounding"
	healthuc "github.com/kailas-cloud/edurag/internal/usecase/health"
	ingestionuc "github.com/kailas-cloud/edurag/internal/usecase/ingestion"
	retrievaluc "github.com/kailas-cloud/edurag/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/edurag/internal/usecase/usage"
)

// Usage headers set when a provider was called during the request.
const (
	HeaderEmbeddingTokens  = "X-Embedding-Tokens"
	HeaderCompletionTokens = "X-Completion-Tokens"
)

// Services are the use cases served over HTTP.
type Services struct {
	Retriever Retriever
	Generator Generator
	Materials Materials
	Validator Validator
	Answerer  Answerer
	Images    ImageSearcher
	Ingester  Ingester
	Health    HealthChecker
	Usage     UsageReporter
}

// Config holds HTTP-level defaults.
type Config struct {
	Policy               grounding.Policy
	DefaultMinSimilarity float64
	Version              string
}

// Server implements the HTTP API handlers.
type Server struct {
	svc           Services
	cfg           Config
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy == (grounding.Policy{}) {
		cfg.Policy = grounding.DefaultPolicy
	}
	return &Server{svc: svc, cfg: cfg, logger: logger, errorHandlers: defaultErrorHandlers()}
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.Health)
	r.Get("/health/ready", s.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/grounding/score", s.GroundingScore)
		r.Get("/usage", s.GetUsage)

		r.Route("/courses/{courseID}", func(r chi.Router) {
			r.Post("/retrieve", s.RetrieveContext)
			r.Post("/materials", s.GenerateMaterial)
			r.Get("/materials", s.ListMaterials)
			r.Post("/ask", s.AskCourse)
			r.Get("/images/search", s.SearchImages)
			r.Post("/contents", s.IngestText)
			r.Post("/images", s.IngestImage)
			r.Delete("/contents/{contentID}", s.DeleteContent)
		})

		r.Route("/materials/{materialID}", func(r chi.Router) {
			r.Get("/", s.GetMaterial)
			r.Delete("/", s.DeleteMaterial)
			r.Post("/validate", s.ValidateMaterial)
		})

		r.Post("/users/{userID}/ask", s.AskUser)
	})
}

// RetrieveContext handles POST /v1/courses/{courseID}/retrieve.
func (s *Server) RetrieveContext(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var req retrieveRequest
	if !s.decode(w, r, &req) {
		return
	}

	r, usage := withUsage(r)
	chunks, err := s.svc.Retriever.Retrieve(r.Context(), retrievaluc.Request{
		Namespace:        courseID,
		CourseID:         courseID,
		Query:            req.Query,
		Filters:          req.Filters.toDomain(),
		TopK:             req.TopK,
		IncludeGenerated: req.IncludeGenerated,
	})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Chunks:         chunksToResponse(chunks),
		GroundingScore: grounding.Score(chunks),
	})
}

// GenerateMaterial handles POST /v1/courses/{courseID}/materials.
func (s *Server) GenerateMaterial(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}

	r, usage := withUsage(r)
	m, err := s.svc.Generator.Generate(r.Context(), generationuc.Request{
		CourseID:  courseID,
		Topic:     req.Topic,
		Category:  dommat.Category(req.Category),
		Filters:   req.Filters.toDomain(),
		Depth:     req.Depth,
		CreatedBy: req.CreatedBy,
	})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/materials/"+m.ID)
	writeJSON(w, http.StatusCreated, materialToResponse(m))
}

// ListMaterials handles GET /v1/courses/{courseID}/materials.
func (s *Server) ListMaterials(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var limit *int
	if !s.queryParam(w, r, "limit", false, &limit) {
		return
	}

	items, err := s.svc.Materials.List(r.Context(), courseID, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := materialListResponse{Items: make([]materialResponse, len(items))}
	for i, m := range items {
		resp.Items[i] = materialToResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMaterial handles GET /v1/materials/{materialID}.
func (s *Server) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "materialID")
	if !ok {
		return
	}
	m, err := s.svc.Materials.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materialToResponse(m))
}

// DeleteMaterial handles DELETE /v1/materials/{materialID}.
func (s *Server) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "materialID")
	if !ok {
		return
	}
	if err := s.svc.Materials.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateMaterial handles POST /v1/materials/{materialID}/validate.
func (s *Server) ValidateMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathParam(w, r, "materialID")
	if !ok {
		return
	}

	r, usage := withUsage(r)
	report, err := s.svc.Validator.Validate(r.Context(), id)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GroundingScore handles POST /v1/grounding/score.
func (s *Server) GroundingScore(w http.ResponseWriter, r *http.Request) {
	var req groundingScoreRequest
	if !s.decode(w, r, &req) {
		return
	}

	sims := make([]*float64, len(req.Chunks))
	for i, c := range req.Chunks {
		sims[i] = c.Similarity
	}
	score := grounding.ScoreSimilarities(sims)
	writeJSON(w, http.StatusOK, groundingScoreResponse{
		Score:           score,
		ChunkCount:      len(sims),
		NeedsEnrichment: s.cfg.Policy.NeedsEnrichment(len(sims), score),
	})
}

// AskCourse handles POST /v1/courses/{courseID}/ask.
func (s *Server) AskCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}

	r, usage := withUsage(r)
	ans, err := s.svc.Answerer.AskCourse(r.Context(), courseID, req.Question, req.Filters.toDomain(), req.TopK)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// AskUser handles POST /v1/users/{userID}/ask.
func (s *Server) AskUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathParam(w, r, "userID")
	if !ok {
		return
	}
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}

	r, usage := withUsage(r)
	ans, err := s.svc.Answerer.AskUser(r.Context(), userID, req.Question, req.Filters.toDomain(), req.TopK)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

// SearchImages handles GET /v1/courses/{courseID}/images/search.
func (s *Server) SearchImages(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var (
		query  string
		topK   *int
		minSim *float64
	)
	if !s.queryParam(w, r, "q", true, &query) ||
		!s.queryParam(w, r, "top_k", false, &topK) ||
		!s.queryParam(w, r, "min_similarity", false, &minSim) {
		return
	}
	threshold := s.cfg.DefaultMinSimilarity
	if minSim != nil {
		threshold = *minSim
	}

	r, usage := withUsage(r)
	images, err := s.svc.Images.SearchImages(r.Context(), courseID, query, derefInt(topK), threshold)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imagesToResponse(images))
}

// IngestText handles POST /v1/courses/{courseID}/contents.
func (s *Server) IngestText(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var req ingestTextRequest
	if !s.decode(w, r, &req) {
		return
	}

	r, usage := withUsage(r)
	res, err := s.svc.Ingester.IngestText(r.Context(), ingestionuc.IngestRequest{
		CourseID:    courseID,
		ContentID:   req.ContentID,
		Text:        req.Text,
		Category:    req.Category,
		ContentType: req.ContentType,
		Week:        req.Week,
		Topic:       req.Topic,
		Language:    req.Language,
		Title:       req.Title,
		FileURL:     req.FileURL,
		CreatedBy:   req.CreatedBy,
		Source:      req.Source,
		UserID:      req.UserID,
	})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// IngestImage handles POST /v1/courses/{courseID}/images.
func (s *Server) IngestImage(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	var req ingestImageRequest
	if !s.decode(w, r, &req) {
		return
	}

	r, usage := withUsage(r)
	res, err := s.svc.Ingester.IngestImage(r.Context(), ingestionuc.ImageRequest{
		CourseID:  courseID,
		ContentID: req.ContentID,
		ImageURL:  req.ImageURL,
		Category:  req.Category,
		Week:      req.Week,
		Topic:     req.Topic,
		Title:     req.Title,
		CreatedBy: req.CreatedBy,
		UserID:    req.UserID,
	})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// DeleteContent handles DELETE /v1/courses/{courseID}/contents/{contentID}.
func (s *Server) DeleteContent(w http.ResponseWriter, r *http.Request) {
	courseID, ok := s.pathParam(w, r, "courseID")
	if !ok {
		return
	}
	contentID, ok := s.pathParam(w, r, "contentID")
	if !ok {
		return
	}

	n, err := s.svc.Ingester.DeleteContent(r.Context(), courseID, contentID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteContentResponse{Deleted: n})
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var raw *string
	if !s.queryParam(w, r, "period", false, &raw) {
		return
	}
	var p string
	if raw != nil {
		p = *raw
	}
	period, err := usageuc.ParsePeriod(p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report, err := s.svc.Usage.Report(r.Context(), period)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Health handles GET /health (liveness).
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: string(healthuc.Healthy), Version: s.cfg.Version})
}

// Ready handles GET /health/ready. Only an unavailable vector store fails readiness.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Version: s.cfg.Version, Checks: checks})
}

// --- helpers ---

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter "+name+": "+err.Error())
		return "", false
	}
	return v, true
}

func (s *Server) queryParam(w http.ResponseWriter, r *http.Request, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter "+name+": "+err.Error())
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeBody(r, dst)
	if err == nil {
		return true
	}
	var re *requestError
	if errors.As(err, &re) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: re.code, Message: re.message, Fields: re.fields})
		return false
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	return false
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func withUsage(r *http.Request) (*http.Request, *domain.RequestUsage) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	return r.WithContext(ctx), usage
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set(HeaderEmbeddingTokens, strconv.Itoa(usage.EmbeddingTokens))
	w.Header().Set(HeaderCompletionTokens, strconv.Itoa(usage.CompletionTokens))
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
