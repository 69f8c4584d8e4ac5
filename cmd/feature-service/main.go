package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/clinrisk/platform/pkg/audit"
	"github.com/clinrisk/platform/pkg/common/config"
	"github.com/clinrisk/platform/pkg/common/database"
	"github.com/clinrisk/platform/pkg/common/kafka"
	"github.com/clinrisk/platform/pkg/common/logger"
	"github.com/clinrisk/platform/pkg/features"
	"github.com/clinrisk/platform/pkg/pipeline"
	"github.com/clinrisk/platform/pkg/preprocess"
	"github.com/clinrisk/platform/pkg/schema"
	"github.com/clinrisk/platform/pkg/storage"
	"github.com/clinrisk/platform/pkg/tabular"
)

type FeatureService struct {
	pipeline *pipeline.Pipeline
	producer *kafka.Producer
	store    *storage.FeatureStore
	runs     *audit.Repository
	runCfg   map[string]interface{}
}

func main() {
	logger.Init()
	cfg := config.Load()

	contracts, err := schema.Load(cfg.ContractsPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Falling back to default column contracts")
	}
	vocabulary, err := preprocess.LoadCatalog(cfg.VocabularyPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Falling back to default vocabulary catalog")
	}
	leakageRules, err := preprocess.LoadLeakageRules(cfg.LeakageRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Falling back to default leakage rules")
	}
	leakageRules.AssociationThreshold = cfg.LeakageThreshold

	p, err := pipeline.New(pipeline.Options{
		AgeGroupStrategy: features.AgeGroupStrategy(cfg.AgeGroupStrategy),
		ValidateSchema:   cfg.ValidateSchema,
		TargetColumn:     cfg.LeakageTarget,
		Contracts:        contracts,
		Vocabulary:       vocabulary,
		LeakageRules:     leakageRules,
		Log:              logger.Component("pipeline"),
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid pipeline configuration")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres()

	runs := audit.NewRepository(db)
	if err := runs.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate audit tables")
	}

	service := &FeatureService{
		pipeline: p,
		producer: kafka.NewProducer(cfg.KafkaTopic),
		store:    storage.NewFeatureStore(),
		runs:     runs,
		runCfg: map[string]interface{}{
			"age_group_strategy": cfg.AgeGroupStrategy,
			"validate_schema":    cfg.ValidateSchema,
			"leakage_target":     cfg.LeakageTarget,
			"leakage_threshold":  cfg.LeakageThreshold,
		},
	}
	defer service.producer.Close()
	defer database.CloseRedis()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/features", service.handleDerive).Methods("POST")
	router.HandleFunc("/api/v1/features/{patient_id}", service.handleGetFeatures).Methods("GET")
	router.HandleFunc("/api/v1/runs/{run_id}", service.handleGetRun).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Feature Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Feature Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Feature Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

type deriveRequest struct {
	PatientIDs []string        `json:"patient_ids,omitempty"`
	Columns    []requestColumn `json:"columns"`
}

type requestColumn struct {
	Name   string        `json:"name"`
	Values []interface{} `json:"values"`
}

type deriveResponse struct {
	RunID          string                   `json:"run_id"`
	Rows           int                      `json:"rows"`
	Report         schema.Report            `json:"report"`
	RemovedColumns []string                 `json:"removed_columns,omitempty"`
	FeatureColumns []string                 `json:"feature_columns"`
	Features       []map[string]interface{} `json:"features"`
	DurationMS     int64                    `json:"duration_ms"`
}

func (s *FeatureService) handleDerive(w http.ResponseWriter, r *http.Request) {
	var req deriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "no columns provided")
		return
	}

	ds, err := decodeDataset(req.Columns)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.PatientIDs) > 0 && len(req.PatientIDs) != ds.Rows() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%d patient ids for %d rows", len(req.PatientIDs), ds.Rows()))
		return
	}

	result, err := s.pipeline.Transform(ds)
	if err != nil {
		if auditErr := s.runs.RecordFailed(r.Context(), s.runCfg, err.Error()); auditErr != nil {
			logger.Log.WithError(auditErr).Error("Failed to record aborted run")
		}
		switch {
		case schema.IsSchemaValidationError(err), preprocess.IsInsufficientFeaturesError(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.recordRun(r.Context(), result)

	for i, patientID := range req.PatientIDs {
		set, err := storage.BuildFeatureSet(result, patientID, i)
		if err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Error("Failed to build feature set")
			continue
		}
		if err := s.store.MaterializeFeatures(r.Context(), set); err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Error("Failed to materialize features")
		}
	}

	resp := deriveResponse{
		RunID:          result.RunID.String(),
		Rows:           result.Dataset.Rows(),
		Report:         result.Report,
		RemovedColumns: result.RemovedColumns,
		FeatureColumns: result.FeatureColumns,
		Features:       encodeFeatures(result),
		DurationMS:     result.Duration.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// recordRun persists the audit record and publishes the run event. Side
// channel failures are logged, never surfaced to the caller: the derivation
// itself succeeded.
func (s *FeatureService) recordRun(ctx context.Context, result *pipeline.Result) {
	summary := map[string]interface{}{
		"rows":            result.Dataset.Rows(),
		"feature_columns": result.FeatureColumns,
		"removed_columns": result.RemovedColumns,
		"duration_ms":     result.Duration.Milliseconds(),
	}

	if err := s.runs.RecordCompleted(ctx, result.RunID, s.runCfg, summary); err != nil {
		logger.Log.WithError(err).Error("Failed to record completed run")
	}

	summary["run_id"] = result.RunID.String()
	if err := s.producer.PublishEvent(ctx, "features.derived", "feature-service", summary); err != nil {
		logger.Log.WithError(err).Error("Failed to publish run event")
	}
}

func (s *FeatureService) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patient_id"]

	set, err := s.store.GetFeatures(r.Context(), patientID)
	if errors.Is(err, storage.ErrFeaturesNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(set)
}

func (s *FeatureService) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["run_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	record, err := s.runs.Get(r.Context(), runID)
	if errors.Is(err, audit.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// decodeDataset converts the request columns into a typed dataset. A column
// is boolean if every value is a bool, numeric if every value is a number or
// null (null becomes the sentinel), and categorical otherwise.
func decodeDataset(columns []requestColumn) (tabular.Dataset, error) {
	rows := len(columns[0].Values)
	ds := tabular.New(rows)

	for _, col := range columns {
		if len(col.Values) != rows {
			return tabular.Dataset{}, fmt.Errorf("column %s has %d values, expected %d", col.Name, len(col.Values), rows)
		}

		var err error
		switch classifyColumn(col.Values) {
		case tabular.Boolean:
			bools := make([]bool, rows)
			for i, v := range col.Values {
				bools[i] = v.(bool)
			}
			ds, err = ds.AppendBools(col.Name, bools)
		case tabular.Numeric:
			floats := make([]float64, rows)
			for i, v := range col.Values {
				if v == nil {
					floats[i] = tabular.MissingValue()
					continue
				}
				floats[i] = v.(float64)
			}
			ds, err = ds.AppendNumeric(col.Name, floats)
		default:
			strs := make([]string, rows)
			for i, v := range col.Values {
				if v == nil {
					continue
				}
				s, ok := v.(string)
				if !ok {
					return tabular.Dataset{}, fmt.Errorf("column %s mixes strings and other types", col.Name)
				}
				strs[i] = s
			}
			ds, err = ds.AppendStrings(col.Name, strs)
		}
		if err != nil {
			return tabular.Dataset{}, err
		}
	}

	return ds, nil
}

func classifyColumn(values []interface{}) tabular.Kind {
	allBool, allNumeric := true, true
	for _, v := range values {
		if _, ok := v.(bool); !ok {
			allBool = false
		}
		if v != nil {
			if _, ok := v.(float64); !ok {
				allNumeric = false
			}
		}
	}
	if allBool && len(values) > 0 {
		return tabular.Boolean
	}
	if allNumeric {
		return tabular.Numeric
	}
	return tabular.Categorical
}

// encodeFeatures renders the derived columns row-wise with sentinels as null.
func encodeFeatures(result *pipeline.Result) []map[string]interface{} {
	rows := make([]map[string]interface{}, result.Dataset.Rows())
	for i := range rows {
		row := make(map[string]interface{}, len(result.FeatureColumns))
		for _, name := range result.FeatureColumns {
			col, ok := result.Dataset.Column(name)
			if !ok {
				continue
			}
			switch col.Kind {
			case tabular.Numeric:
				if tabular.IsMissing(col.Floats[i]) {
					row[name] = nil
				} else {
					row[name] = col.Floats[i]
				}
			case tabular.Categorical:
				row[name] = col.Strings[i]
			case tabular.Boolean:
				row[name] = col.Bools[i]
			}
		}
		rows[i] = row
	}
	return rows
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
