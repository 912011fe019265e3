// Package log defines standard attribute keys for pipeline operations.
//
// This file contains predefined attribute keys that provide consistency across
// all logging operations in cropml. Using these standard keys enables better
// log analysis, monitoring, and debugging of a pipeline run.
//
// These keys follow a hierarchical naming convention (e.g., "model.family",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
// These attributes identify the model family, instance, and operation being performed.
const (
	// FamilyKey identifies the model family being trained.
	// Examples: "linear", "ridge", "forest", "gbrt"
	FamilyKey = "model.family"

	// OperationKey specifies the pipeline operation being performed.
	// Standard values: "load", "split", "fit", "predict", "transform",
	// "tune", "select", "evaluate", "explain"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	// Examples: "dataset", "recipe", "tune", "explain"
	ComponentKey = "ml.component"

	// SeedKey records the seed driving a stochastic step.
	SeedKey = "ml.seed"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	// Important for dimensionality tracking and debugging shape mismatches.
	FeaturesKey = "data.features"

	// TargetKey names the target column being predicted.
	TargetKey = "data.target"

	// TrainRowsKey and TestRowsKey record split sizes.
	TrainRowsKey = "data.train_rows"
	TestRowsKey  = "data.test_rows"
)

// Tuning and Selection Context
const (
	// FoldKey records the cross-validation fold index of a trial.
	FoldKey = "tune.fold"

	// CombinationsKey records how many hyperparameter combinations are in play.
	CombinationsKey = "tune.combinations"

	// EliminatedKey records how many combinations racing dropped.
	EliminatedKey = "tune.eliminated"

	// CandidateKey identifies a selection candidate by its source rule.
	CandidateKey = "select.candidate"

	// WinnerKey identifies the winning candidate's parameter set.
	WinnerKey = "select.winner"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RMSEKey records root mean squared error for evaluation operations.
	RMSEKey = "metrics.rmse"

	// R2ScoreKey records R² coefficient of determination for regression.
	// Range typically (-∞, 1.0], with 1.0 being perfect prediction.
	R2ScoreKey = "metrics.r2_score"

	// CorrelationKey records the Pearson correlation of observed vs predicted.
	CorrelationKey = "metrics.correlation"
)
