// Package pipeline wires the schema validator, categorical cleaner, leakage
// detector and the six feature stages into a single transform contract.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinrisk/platform/pkg/features"
	"github.com/clinrisk/platform/pkg/preprocess"
	"github.com/clinrisk/platform/pkg/schema"
	"github.com/clinrisk/platform/pkg/tabular"
)

// Options configures a Pipeline. Zero values select the compiled-in
// defaults. Options are consumed at construction and never re-validated per
// call.
type Options struct {
	AgeGroupStrategy features.AgeGroupStrategy
	ValidateSchema   bool
	TargetColumn     string
	Contracts        schema.ContractSet
	Vocabulary       preprocess.Catalog
	LeakageRules     preprocess.LeakageRules
	Log              logrus.FieldLogger
}

// Pipeline runs Validating -> Cleaning -> LeakageChecked -> Deriving(1..6).
// It holds no state across Transform calls beyond the immutable
// configuration, so one configured instance can serve concurrent transforms.
type Pipeline struct {
	strategy  features.AgeGroupStrategy
	strict    bool
	target    string
	contracts schema.ContractSet
	validator *schema.Validator
	cleaner   *preprocess.Cleaner
	detector  *preprocess.Detector
	stages    []features.Stage
	log       logrus.FieldLogger
}

// Pipeline states, logged on every transition.
const (
	stateValidating     = "Validating"
	stateCleaning       = "Cleaning"
	stateLeakageChecked = "LeakageChecked"
	stateDeriving       = "Deriving"
	stateDone           = "Done"
)

// New validates the configuration once and builds the stage chain, checking
// at build time that no stage declares an input produced by a later stage.
func New(opts Options) (*Pipeline, error) {
	if opts.AgeGroupStrategy == "" {
		opts.AgeGroupStrategy = features.AgeGroupDetailed
	}
	if !opts.AgeGroupStrategy.Valid() {
		return nil, fmt.Errorf("invalid age_group_strategy %q, valid options: [simple, detailed, senior]", opts.AgeGroupStrategy)
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if len(opts.Contracts.Contracts) == 0 {
		opts.Contracts = schema.DefaultContracts()
	}
	if len(opts.Vocabulary.Columns) == 0 {
		opts.Vocabulary = preprocess.DefaultCatalog()
	}
	if len(opts.LeakageRules.Rules) == 0 {
		opts.LeakageRules = preprocess.DefaultLeakageRules()
	}

	detector, err := preprocess.NewDetector(opts.LeakageRules, opts.Log)
	if err != nil {
		return nil, err
	}

	stages := features.Stages()
	if err := checkStageOrdering(opts.Contracts, stages); err != nil {
		return nil, err
	}

	return &Pipeline{
		strategy:  opts.AgeGroupStrategy,
		strict:    opts.ValidateSchema,
		target:    opts.TargetColumn,
		contracts: opts.Contracts,
		validator: schema.NewValidator(opts.Contracts, opts.ValidateSchema, opts.Log),
		cleaner:   preprocess.NewCleaner(opts.Vocabulary, opts.Log),
		detector:  detector,
		stages:    stages,
		log:       opts.Log,
	}, nil
}

// checkStageOrdering rejects forward references: every declared stage input
// must be a contracted raw column or an output of an earlier stage.
func checkStageOrdering(contracts schema.ContractSet, stages []features.Stage) error {
	available := make(map[string]struct{})
	for _, name := range contracts.Names() {
		available[name] = struct{}{}
	}
	for _, stage := range stages {
		for _, input := range append(stage.Requires(), stage.Optional()...) {
			if _, ok := available[input]; !ok {
				return fmt.Errorf("stage %s declares input %q produced by a later stage or not contracted", stage.Name(), input)
			}
		}
		for _, output := range stage.Produces() {
			if _, exists := available[output]; exists {
				return fmt.Errorf("stage %s output %q collides with an existing column", stage.Name(), output)
			}
			available[output] = struct{}{}
		}
	}
	return nil
}

// Result is the outcome of one transform run.
type Result struct {
	RunID          uuid.UUID       `json:"run_id"`
	Dataset        tabular.Dataset `json:"-"`
	Report         schema.Report   `json:"report"`
	RemovedColumns []string        `json:"removed_columns,omitempty"`
	FeatureColumns []string        `json:"feature_columns"`
	Duration       time.Duration   `json:"duration"`
}

// Transform runs the full pipeline over one dataset. On any fatal error the
// whole run aborts with the original error: no partial-feature output is ever
// returned. Row count and row order are preserved end to end.
func (p *Pipeline) Transform(ds tabular.Dataset) (*Result, error) {
	runID := uuid.New()
	log := p.log.WithField("run_id", runID.String())
	start := time.Now()

	log.WithFields(logrus.Fields{
		"state": stateValidating,
		"rows":  ds.Rows(),
		"cols":  ds.Len(),
	}).Info("Starting feature engineering pipeline")

	report, err := p.validator.Validate(ds)
	if err != nil {
		return nil, err
	}
	missingRequired := make(map[string]struct{}, len(report.MissingRequired))
	for _, name := range report.MissingRequired {
		missingRequired[name] = struct{}{}
	}

	log.WithField("state", stateCleaning).Info("Cleaning categorical variables")
	out := p.cleaner.Clean(ds)

	out, removed, err := p.detector.DetectAndStrip(out, p.target, p.contracts.Required())
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"state":   stateLeakageChecked,
		"removed": removed,
	}).Info("Leakage check completed")

	inputNames := make(map[string]struct{}, out.Len())
	for _, name := range out.Names() {
		inputNames[name] = struct{}{}
	}

	for i, stage := range p.stages {
		stageLog := log.WithFields(logrus.Fields{
			"state": fmt.Sprintf("%s(%d/%d)", stateDeriving, i+1, len(p.stages)),
			"stage": stage.Name(),
		})

		if degraded := degradedInputs(stage, missingRequired); len(degraded) > 0 {
			// Only reachable with validation disabled; with strict
			// validation the run already failed fast.
			stageLog.WithField("columns", degraded).Warn("Stage skipped, required inputs absent")
			continue
		}

		stageLog.Info("Deriving features")
		out, err = stage.Apply(out, features.Config{AgeGroupStrategy: p.strategy, Log: stageLog})
		if err != nil {
			return nil, err
		}
		stageLog.WithField("cols", out.Len()).Info("Stage completed")
	}

	var featureColumns []string
	for _, name := range out.Names() {
		if _, raw := inputNames[name]; !raw {
			featureColumns = append(featureColumns, name)
		}
	}

	result := &Result{
		RunID:          runID,
		Dataset:        out,
		Report:         report,
		RemovedColumns: removed,
		FeatureColumns: featureColumns,
		Duration:       time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"state":    stateDone,
		"rows":     out.Rows(),
		"cols":     out.Len(),
		"features": len(featureColumns),
	}).Info("Pipeline completed successfully")

	return result, nil
}

func degradedInputs(stage features.Stage, missingRequired map[string]struct{}) []string {
	var degraded []string
	for _, input := range stage.Requires() {
		if _, missing := missingRequired[input]; missing {
			degraded = append(degraded, input)
		}
	}
	return degraded
}
