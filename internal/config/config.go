// Package config resolves typed, named feature flags and numeric
// parameters through three layers — process defaults, session-persisted
// overrides, request overrides. Every toggle is addressable by name
// and has a default, and Merge is a pure function so it can be
// property-tested without a viper instance.
package config

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// FeatureSet is the fully-resolved configuration for one turn.
type FeatureSet struct {
	// Boolean toggles.
	EnableLazyRetrieval      bool
	EnableIntentRouting      bool
	EnableQueryDecomposition bool
	EnableWebReranking       bool
	EnableSemanticBoost      bool
	EnableSemanticMemory     bool
	EnableCritic             bool
	EnableCRAG               bool
	EnableWebQualityFilter   bool
	EnableAdaptiveRetrieval  bool

	// Numeric thresholds and caps.
	DualThreshold         float64
	IntentConfThreshold   float64
	MinDocs               int
	RerankerThreshold     float64
	RelaxedRerankThreshold float64
	MinCoverage           float64
	MinDiversity          float64
	MinAuthority          float64
	MaxReformulations     int
	MaxRevisions          int
	MaxParallelSubQueries int
	DecompositionThreshold float64
	RRFConstant           float64
	SemanticBoostWeight   float64
	MinSimilarity         float64
	MaxAgeTurns           int
	MaxAgeDays            int
	MinUsage              int
	ContextWindow         int
	ReservedOutputTokens  int
	RetryMaxAttempts      int
}

// Defaults returns the process-wide default FeatureSet, the "base"
// layer of the three-layer merge.
func Defaults() FeatureSet {
	return FeatureSet{
		EnableLazyRetrieval:      false,
		EnableIntentRouting:      true,
		EnableQueryDecomposition: true,
		EnableWebReranking:       true,
		EnableSemanticBoost:      true,
		EnableSemanticMemory:     true,
		EnableCritic:             true,
		EnableCRAG:               true,
		EnableWebQualityFilter:   true,
		EnableAdaptiveRetrieval:  true,

		DualThreshold:          0.5,
		IntentConfThreshold:    0.5,
		MinDocs:                3,
		RerankerThreshold:      2.5,
		RelaxedRerankThreshold: 1.0,
		MinCoverage:            0.4,
		MinDiversity:           0.3,
		MinAuthority:           0.3,
		MaxReformulations:      3,
		MaxRevisions:           2,
		MaxParallelSubQueries:  4,
		DecompositionThreshold: 0.6,
		RRFConstant:            60,
		SemanticBoostWeight:    0.3,
		MinSimilarity:          0.75,
		MaxAgeTurns:            20,
		MaxAgeDays:             30,
		MinUsage:               1,
		ContextWindow:          128_000,
		ReservedOutputTokens:   2048,
		RetryMaxAttempts:       3,
	}
}

// Load reads process configuration from environment variables and an
// optional config file via viper, layered on top of Defaults.
func Load(configPath string) (FeatureSet, error) {
	fs := Defaults()

	v := viper.New()
	v.SetEnvPrefix("SENTRA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper already knows, so every FeatureSet
	// field is bound to SENTRA_<FIELD> (upper-cased, e.g. SENTRA_MINDOCS).
	fields := reflect.TypeOf(fs)
	for i := 0; i < fields.NumField(); i++ {
		if err := v.BindEnv(fields.Field(i).Name); err != nil {
			return fs, err
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fs, err
		}
	}

	decoded := fs
	if err := v.Unmarshal(&decoded, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
		return fs, err
	}
	return decoded, nil
}

// Override is one request- or session-scoped feature value (a
// `featureOverrides` map entry). Exactly one field is set.
type Override struct {
	Bool *bool
	Num  *float64
}

// Merge layers base ← persisted ← request, request taking precedence,
// and returns a new FeatureSet. It never mutates its inputs, so it's
// safe to call concurrently and is the one place the three-layer
// merge policy is decided.
func Merge(base FeatureSet, persisted, request map[string]Override) FeatureSet {
	out := base
	applyOverrides(&out, persisted)
	applyOverrides(&out, request)
	return out
}

func applyOverrides(fs *FeatureSet, overrides map[string]Override) {
	for name, ov := range overrides {
		setField(fs, name, ov)
	}
}

func setField(fs *FeatureSet, name string, ov Override) {
	b := func() bool {
		if ov.Bool != nil {
			return *ov.Bool
		}
		return false
	}
	n := func() float64 {
		if ov.Num != nil {
			return *ov.Num
		}
		return 0
	}
	switch name {
	case "EnableLazyRetrieval":
		fs.EnableLazyRetrieval = b()
	case "EnableIntentRouting":
		fs.EnableIntentRouting = b()
	case "EnableQueryDecomposition":
		fs.EnableQueryDecomposition = b()
	case "EnableWebReranking":
		fs.EnableWebReranking = b()
	case "EnableSemanticBoost":
		fs.EnableSemanticBoost = b()
	case "EnableSemanticMemory":
		fs.EnableSemanticMemory = b()
	case "EnableCritic":
		fs.EnableCritic = b()
	case "EnableCRAG":
		fs.EnableCRAG = b()
	case "EnableWebQualityFilter":
		fs.EnableWebQualityFilter = b()
	case "EnableAdaptiveRetrieval":
		fs.EnableAdaptiveRetrieval = b()
	case "DualThreshold":
		fs.DualThreshold = n()
	case "IntentConfThreshold":
		fs.IntentConfThreshold = n()
	case "MinDocs":
		fs.MinDocs = int(n())
	case "RerankerThreshold":
		fs.RerankerThreshold = n()
	case "RelaxedRerankThreshold":
		fs.RelaxedRerankThreshold = n()
	case "MinCoverage":
		fs.MinCoverage = n()
	case "MinDiversity":
		fs.MinDiversity = n()
	case "MinAuthority":
		fs.MinAuthority = n()
	case "MaxReformulations":
		fs.MaxReformulations = int(n())
	case "MaxRevisions":
		fs.MaxRevisions = int(n())
	case "MaxParallelSubQueries":
		fs.MaxParallelSubQueries = int(n())
	case "DecompositionThreshold":
		fs.DecompositionThreshold = n()
	case "RRFConstant":
		fs.RRFConstant = n()
	case "SemanticBoostWeight":
		fs.SemanticBoostWeight = n()
	case "MinSimilarity":
		fs.MinSimilarity = n()
	case "MaxAgeTurns":
		fs.MaxAgeTurns = int(n())
	case "MaxAgeDays":
		fs.MaxAgeDays = int(n())
	case "MinUsage":
		fs.MinUsage = int(n())
	case "ContextWindow":
		fs.ContextWindow = int(n())
	case "ReservedOutputTokens":
		fs.ReservedOutputTokens = int(n())
	case "RetryMaxAttempts":
		fs.RetryMaxAttempts = int(n())
	}
}
