package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/bruce-robotics/bruce-acceptor/adapter"
	"github.com/bruce-robotics/bruce-acceptor/metrics"
	"github.com/bruce-robotics/bruce-acceptor/registry"
	"github.com/bruce-robotics/bruce-acceptor/runner"
	"github.com/bruce-robotics/bruce-acceptor/store"
	"github.com/bruce-robotics/bruce-acceptor/types"
)

// APIServer exposes the platform and test operations over HTTP.
type APIServer struct {
	ctx    context.Context
	server *http.Server

	log      log.Logger
	registry *registry.Registry
	runner   *runner.CrossPlatformRunner
	store    *store.Store
}

func NewAPIServer(reg *registry.Registry, run *runner.CrossPlatformRunner, st *store.Store, logger log.Logger) *APIServer {
	if logger == nil {
		logger = log.New()
	}
	return &APIServer{
		log:      logger.New("role", "api"),
		registry: reg,
		runner:   run,
		store:    st,
	}
}

func (a *APIServer) Start(ctx context.Context, addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	server := &http.Server{
		Handler: c.Handler(a.Handler()),
		Addr:    addr,
	}
	a.server = server
	a.ctx = ctx
	return a.server.ListenAndServe()
}

func (a *APIServer) Shutdown() error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(a.ctx)
}

// Handler returns the configured router without binding a listener.
func (a *APIServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", a.handleAllStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/platforms", a.handleListPlatforms).Methods(http.MethodGet)
	r.HandleFunc("/api/platforms/{platform}/connect", a.handleConnect).Methods(http.MethodPost)
	r.HandleFunc("/api/platforms/{platform}/disconnect", a.handleDisconnect).Methods(http.MethodPost)
	r.HandleFunc("/api/platforms/{platform}/status", a.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/platforms/{platform}/execute", a.handleExecute).Methods(http.MethodPost)
	r.HandleFunc("/api/platforms/{platform}/stop", a.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/api/platforms/{platform}/start-sim", a.handleStartSim).Methods(http.MethodPost)
	r.HandleFunc("/api/tests", a.handleListTests).Methods(http.MethodGet)
	r.HandleFunc("/api/tests/execute", a.handleExecuteTest).Methods(http.MethodPost)
	r.HandleFunc("/api/tests/{name}", a.handleGetTest).Methods(http.MethodGet)
	r.HandleFunc("/api/results", a.handleListResults).Methods(http.MethodGet)
	r.HandleFunc("/api/results/{id}", a.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/api/results/{id}/comparison", a.handleComparison).Methods(http.MethodGet)
	r.HandleFunc("/api/data/statistics", a.handleStatistics).Methods(http.MethodGet)
	return r
}

func (a *APIServer) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Platform string `json:"platform"`
	}
	platforms := a.registry.Platforms()
	out := make([]entry, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, entry{Platform: p})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *APIServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	adp, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := adp.Connect(r.Context()); err != nil {
		a.log.Error("connect failed", "platform", adp.Platform(), "err", err)
		metrics.RecordError("api")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, adp.Status(r.Context()))
}

func (a *APIServer) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	adp, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := adp.Disconnect(); err != nil {
		a.log.Error("disconnect failed", "platform", adp.Platform(), "err", err)
		metrics.RecordError("api")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, adp.Status(r.Context()))
}

func (a *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	adp, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, adp.Status(r.Context()))
}

func (a *APIServer) handleAllStatus(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]types.PlatformStatus)
	for _, id := range a.registry.Platforms() {
		adp, ok := a.registry.Adapter(id)
		if !ok {
			continue
		}
		out[id] = adp.Status(r.Context())
	}
	writeJSON(w, http.StatusOK, out)
}

// simStarter is the extra capability of local-simulator adapters.
type simStarter interface {
	StartSim(ctx context.Context) types.CommandResult
}

func (a *APIServer) handleStartSim(w http.ResponseWriter, r *http.Request) {
	adp, ok := a.lookup(w, r)
	if !ok {
		return
	}
	starter, ok := adp.(simStarter)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("platform cannot launch a simulator: "+adp.Platform()))
		return
	}
	result := starter.StartSim(r.Context())
	writeJSON(w, commandStatus(result), result)
}

type executeRequest struct {
	Command    string `json:"command"`
	Background bool   `json:"background"`
}

func (a *APIServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	adp, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	if req.Command == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("command is required"))
		return
	}
	result := adp.ExecuteCommand(r.Context(), req.Command, req.Background)
	writeJSON(w, commandStatus(result), result)
}

// commandStatus maps a structured command failure caused by a missing
// connection to 400; everything else, including failed commands, is a
// perfectly good 200 with the result as the body.
func commandStatus(result types.CommandResult) int {
	if result.Error == adapter.ErrNotConnected.Error() {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

type stopRequest struct {
	HandleID string `json:"handle_id"`
}

func (a *APIServer) handleStop(w http.ResponseWriter, r *http.Request) {
	adp, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	if req.HandleID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("handle_id is required"))
		return
	}
	stopped := adp.StopBackground(r.Context(), req.HandleID)
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

func (a *APIServer) handleListTests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.Tests())
}

func (a *APIServer) handleGetTest(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	spec, ok := a.registry.Test(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown test: "+name))
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

type executeTestRequest struct {
	Test      string   `json:"test"`
	Platforms []string `json:"platforms,omitempty"`
}

func (a *APIServer) handleExecuteTest(w http.ResponseWriter, r *http.Request) {
	var req executeTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	if req.Test == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("test is required"))
		return
	}
	spec, ok := a.registry.Test(req.Test)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown test: "+req.Test))
		return
	}
	for _, p := range req.Platforms {
		if _, ok := a.registry.Adapter(p); !ok {
			writeJSON(w, http.StatusNotFound, errorBody("unknown platform: "+p))
			return
		}
	}
	result, err := a.runner.Run(r.Context(), spec, req.Platforms)
	if err != nil {
		a.log.Error("test run failed", "test", req.Test, "err", err)
		metrics.RecordError("api")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *APIServer) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid limit"))
			return
		}
	}
	results, err := a.store.List(r.URL.Query().Get("platform"), limit)
	if err != nil {
		a.log.Error("result listing failed", "err", err)
		metrics.RecordError("store")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	if results == nil {
		results = []types.TestSummary{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *APIServer) handleResults(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["id"]
	results, err := a.store.GetAll(testID)
	if err != nil {
		a.log.Error("result lookup failed", "test", testID, "err", err)
		metrics.RecordError("store")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	if len(results) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody("no results for test: "+testID))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *APIServer) handleComparison(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["id"]
	results, err := a.store.GetAll(testID)
	if err != nil {
		a.log.Error("result lookup failed", "test", testID, "err", err)
		metrics.RecordError("store")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	if len(results) < 2 {
		writeJSON(w, http.StatusNotFound, errorBody("need results from at least two platforms for test: "+testID))
		return
	}
	name := testID
	for _, summary := range results {
		name = summary.TestName
		break
	}
	writeJSON(w, http.StatusOK, runner.Compare(results, name))
}

func (a *APIServer) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Statistics()
	if err != nil {
		a.log.Error("statistics query failed", "err", err)
		metrics.RecordError("store")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *APIServer) lookup(w http.ResponseWriter, r *http.Request) (adapter.Adapter, bool) {
	platform := mux.Vars(r)["platform"]
	adp, ok := a.registry.Adapter(platform)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown platform: "+platform))
		return nil, false
	}
	return adp, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
