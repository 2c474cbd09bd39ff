package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
	sm "corr.service/models"
)

const DefaultTopPairs = 10

type HighlyCorrelated struct {
	Positive []CorrelatedPair `json:"positive"`
	Negative []CorrelatedPair `json:"negative"`
}

type CorrelationResponse struct {
	AnalysisId            string                        `json:"analysis_id"`
	CorrelationMatrix     map[string]map[string]float64 `json:"correlation_matrix"`
	Assets                []string                      `json:"assets"`
	AssetNames            map[string]string             `json:"asset_names"`
	DiversificationScore  float64                       `json:"diversification_score"`
	Statistics            map[string]AssetStatistics    `json:"statistics"`
	PerformanceComparison map[string]AssetPerformance   `json:"performance_comparison"`
	HighlyCorrelated      HighlyCorrelated              `json:"highly_correlated"`
	Betas                 map[string]float64            `json:"betas"`
	RollingCorrelations   []RollingCorrelation          `json:"rolling_correlations,omitempty"`
	Period                string                        `json:"period"`
	DataPoints            int                           `json:"data_points"`
	StartDate             string                        `json:"start_date"`
	EndDate               string                        `json:"end_date"`
	CorrelationMethod     CorrelationMethod             `json:"correlation_method"`
	ReturnsMethod         ReturnsMethod                 `json:"returns_method"`
	Warnings              []Warning                     `json:"warnings"`
}

// RunAnalysis loads prices for the requested assets and runs every analytic
// over them. Only request and data acquisition problems are errors, numeric
// degradations come back as warnings.
func (sc *ServiceContext) RunAnalysis(ctx context.Context, req sm.CorrelationRequest) (*CorrelationResponse, error) {
	start := time.Now()
	analysisId := uuid.NewString()
	logger := log.With().Str("analysis_id", analysisId).Str("period", req.Period).Logger()

	symbols := req.Assets.Symbols()
	logger.Info().Int("assets", len(symbols)).Msg("received correlation request")

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("loading price table")
	stageStart := time.Now()
	prices, warnings, err := sc.LoadPriceTable(ctx, symbols, req.Period)
	sc.Metrics.observeStage("prices", stageStart)
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("error loading price table")
		return nil, err
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Int("rows", prices.Len()).Msg("calculating returns")
	stageStart = time.Now()
	// unknown names pass through so CalculateReturns can warn about them
	returnsMethod := ReturnsMethod(req.ReturnsMethod)
	if m, ok := ParseReturnsMethod(req.ReturnsMethod); ok {
		returnsMethod = m
	}
	returns := CalculateReturns(prices, returnsMethod)
	warnings = append(warnings, returns.Warnings...)
	sc.Metrics.observeStage("returns", stageStart)

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("calculating correlation matrix")
	stageStart = time.Now()
	correlation := CalculateCorrelationMatrix(returns.Returns, CorrelationMethod(req.CorrelationMethod))
	warnings = append(warnings, correlation.Warnings...)
	sc.Metrics.observeStage("correlation", stageStart)

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("calculating derived metrics")
	stageStart = time.Now()
	threshold, topN := sc.pairSettings()
	positive := FindCorrelatedPairs(correlation.Matrix, threshold, PositivePairs)
	negative := FindCorrelatedPairs(correlation.Matrix, threshold, NegativePairs)

	market := sc.marketAsset(req.MarketAsset)
	betas := map[string]float64{}
	if returns.Returns.Index(market) >= 0 {
		betas = CalculateBetas(returns.Returns, market)
	} else if req.MarketAsset != "" {
		warnings = append(warnings, Warning{
			Code:    WarnMissingMarketAsset,
			Message: fmt.Sprintf("market asset %s is not among the analysed assets, betas were skipped", market),
		})
	}

	res := &CorrelationResponse{
		AnalysisId:            analysisId,
		CorrelationMatrix:     correlation.Matrix.ToMap(),
		Assets:                correlation.Matrix.Symbols,
		AssetNames:            sc.assetNames(correlation.Matrix.Symbols),
		DiversificationScore:  CalculateDiversificationScore(correlation.Matrix),
		Statistics:            SummarizeStatistics(returns.Returns),
		PerformanceComparison: ComparePerformance(prices),
		HighlyCorrelated: HighlyCorrelated{
			Positive: TopPairs(positive, topN),
			Negative: TopPairs(negative, topN),
		},
		Betas:             betas,
		Period:            req.Period,
		DataPoints:        returns.Returns.Len(),
		StartDate:         ex.FmtShort(prices.Dates[0]),
		EndDate:           ex.FmtShort(prices.Dates[prices.Len()-1]),
		CorrelationMethod: correlation.Method,
		ReturnsMethod:     returns.Method,
	}
	if res.Assets == nil {
		res.Assets = []string{}
	}

	if req.Rolling != nil {
		res.RollingCorrelations = sc.rolling(returns.Returns, *req.Rolling)
	}
	sc.Metrics.observeStage("derived", stageStart)

	res.Warnings = warnings
	if res.Warnings == nil {
		res.Warnings = []Warning{}
	}
	logWarnings(logger, res.Warnings)

	logger.Info().Dur("elapsed", time.Since(start)).Int("data_points", res.DataPoints).Msg("correlation analysis completed")
	return res, nil
}

func (sc *ServiceContext) rolling(returns dm.Table, opts sm.RollingOptions) []RollingCorrelation {
	window := opts.Window
	if window == 0 && sc.Config != nil {
		window = sc.Config.Analysis.RollingWindow
	}

	var asset1, asset2 string
	if len(opts.Assets) == 2 {
		asset1, asset2 = strings.ToUpper(opts.Assets[0]), strings.ToUpper(opts.Assets[1])
	}
	return CalculateRollingCorrelation(returns, window, asset1, asset2)
}

func (sc *ServiceContext) pairSettings() (float64, int) {
	if sc.Config == nil {
		return DefaultPairThreshold, DefaultTopPairs
	}
	return sc.Config.Analysis.PairThreshold, sc.Config.Analysis.TopPairs
}

// marketAsset prefers the request, then the configuration.
func (sc *ServiceContext) marketAsset(requested string) string {
	if requested != "" {
		return strings.ToUpper(requested)
	}
	if sc.Config != nil && sc.Config.Analysis.MarketAsset != "" {
		return sc.Config.Analysis.MarketAsset
	}
	return DefaultMarketAsset
}

func (sc *ServiceContext) assetNames(symbols []string) map[string]string {
	res := make(map[string]string, len(symbols))
	for _, s := range symbols {
		res[s] = sc.Catalog.Name(s)
	}
	return res
}

func logWarnings(logger zerolog.Logger, warnings []Warning) {
	for _, w := range warnings {
		logger.Warn().Str("code", w.Code).Msg(w.Message)
	}
}
