package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能な回帰モデルのインターフェース。
// X は前処理済みの計画行列、y は単一列の目的変数を想定する。
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。
	// 学習済みのモデルに対して再度呼ぶと新しいデータで学習し直す。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース。
// クロスバリデーションと Shapley 寄与計算の両方がこの形で予測を呼ぶ。
type Predictor interface {
	// Predict は入力データに対する予測値を n×1 行列として返す。
	// 未学習のモデルに対して呼ぶと NotFittedError を返す。
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// LinearModel は線形系の回帰モデル (最小二乗、リッジ、弾性ネット) が
// 追加で公開するインターフェース。
type LinearModel interface {
	// Weights は学習された各特徴量の係数を返す。
	Weights() []float64
	// Intercept は学習された切片を返す。
	Intercept() float64
	// Score はモデルの決定係数（R²）を計算する。
	Score(X, y mat.Matrix) (float64, error)
}
