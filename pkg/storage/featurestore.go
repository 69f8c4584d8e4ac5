// Package storage provides the online feature store: derived feature vectors
// materialized to Redis per patient for low-latency reads.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinrisk/platform/pkg/common/config"
	"github.com/clinrisk/platform/pkg/common/database"
	"github.com/clinrisk/platform/pkg/common/logger"
	"github.com/clinrisk/platform/pkg/pipeline"
	"github.com/clinrisk/platform/pkg/tabular"
)

var ErrFeaturesNotFound = errors.New("no materialized features for patient")

// FeatureSet is one patient's derived feature vector from a single run.
// Non-computable values are stored as null, never as zero.
type FeatureSet struct {
	PatientID string                 `json:"patient_id"`
	RunID     uuid.UUID              `json:"run_id"`
	Features  map[string]interface{} `json:"features"`
	Version   int                    `json:"version"`
	DerivedAt time.Time              `json:"derived_at"`
}

type FeatureStore struct {
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewFeatureStore() *FeatureStore {
	cfg := config.Load()
	return &FeatureStore{
		redisClient: database.GetRedis(),
		cacheTTL:    cfg.FeatureStoreCacheTTL,
	}
}

// BuildFeatureSet extracts the derived feature columns of one row from a
// completed run.
func BuildFeatureSet(result *pipeline.Result, patientID string, row int) (FeatureSet, error) {
	if row < 0 || row >= result.Dataset.Rows() {
		return FeatureSet{}, fmt.Errorf("row %d out of range, dataset has %d rows", row, result.Dataset.Rows())
	}

	features := make(map[string]interface{}, len(result.FeatureColumns))
	for _, name := range result.FeatureColumns {
		col, ok := result.Dataset.Column(name)
		if !ok {
			return FeatureSet{}, fmt.Errorf("feature column %s missing from result", name)
		}
		features[name] = featureValue(col, row)
	}

	return FeatureSet{
		PatientID: patientID,
		RunID:     result.RunID,
		Features:  features,
		Version:   1,
		DerivedAt: time.Now().UTC(),
	}, nil
}

// featureValue maps the numeric sentinel to null so the set stays JSON
// serializable and consumers can tell undefined from zero.
func featureValue(col tabular.Column, row int) interface{} {
	switch col.Kind {
	case tabular.Numeric:
		v := col.Floats[row]
		if tabular.IsMissing(v) {
			return nil
		}
		return v
	case tabular.Categorical:
		return col.Strings[row]
	case tabular.Boolean:
		return col.Bools[row]
	}
	return nil
}

// MaterializeFeatures writes the feature set to the online store with the
// configured TTL. The newest run always wins.
func (f *FeatureStore) MaterializeFeatures(ctx context.Context, set FeatureSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal feature set: %w", err)
	}

	key := featureKey(set.PatientID)
	if err := f.redisClient.Set(ctx, key, data, f.cacheTTL).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Error("Failed to materialize features")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"key":      key,
		"features": len(set.Features),
		"run_id":   set.RunID.String(),
	}).Info("Features materialized to online store")

	return nil
}

// GetFeatures reads the latest materialized feature set for a patient.
func (f *FeatureStore) GetFeatures(ctx context.Context, patientID string) (FeatureSet, error) {
	key := featureKey(patientID)

	data, err := f.redisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return FeatureSet{}, ErrFeaturesNotFound
	}
	if err != nil {
		logger.Log.WithError(err).WithField("key", key).Error("Failed to read features")
		return FeatureSet{}, err
	}

	var set FeatureSet
	if err := json.Unmarshal(data, &set); err != nil {
		return FeatureSet{}, fmt.Errorf("failed to unmarshal feature set: %w", err)
	}
	return set, nil
}

func featureKey(patientID string) string {
	return fmt.Sprintf("features:%s", patientID)
}
