// Package cropml is a crop-yield regression pipeline for Go: tabular
// agronomic data in, a tuned and explained model out.
//
// The pipeline covers the full modeling loop a field-trial analysis
// needs: typed CSV loading, a stratified train/test split, a
// leakage-safe preprocessing recipe, cross-validated hyperparameter
// search with optional racing, multi-rule candidate selection, final
// evaluation with overfit diagnostics, and Monte Carlo Shapley
// attribution with plot rendering.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/harvestlab/cropml/dataset"
//	    "github.com/harvestlab/cropml/pipeline"
//	)
//
//	func main() {
//	    result, err := pipeline.Run(pipeline.Config{
//	        CSVPath: "fields.csv",
//	        Schema:  dataset.Schema{Categorical: []string{"variety"}},
//	        Target:  "yield",
//	        Family:  "forest",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("test RMSE: %.3f\n", result.Evaluation.Test.RMSE)
//	}
//
// # Packages
//
// - dataset: column-typed tables, CSV loading, stratified splitting
// - recipe: fit-on-train preprocessing steps (one-hot, filters, scaling)
// - regressors: the model family registry (linear through gbrt)
// - tune: k-fold search, racing, and candidate selection
// - evaluate: final fit scorecards
// - explain: permutation Shapley attribution and plots
// - pipeline: the sequential runner tying the stages together
//
// Every stochastic stage takes an explicit seed, so a run is fully
// reproducible from its Config.
package cropml
