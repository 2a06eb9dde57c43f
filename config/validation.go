package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateVectorDB()...)
	errs = append(errs, c.validateContext()...)
	errs = append(errs, c.validateSplitter()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateEmbedding() ValidationErrors {
	var errs ValidationErrors

	if c.Embedding.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding base_url is required",
		})
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: fmt.Sprintf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions),
		})
	}
	return errs
}

func (c *Config) validateVectorDB() ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(c.VectorDB.Provider) {
	case "qdrant":
		if c.VectorDB.Qdrant.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "vectordb.qdrant.host",
				Message: "qdrant host is required",
			})
		}
		if c.VectorDB.Qdrant.Port <= 0 || c.VectorDB.Qdrant.Port > 65535 {
			errs = append(errs, ValidationError{
				Field:   "vectordb.qdrant.port",
				Message: fmt.Sprintf("invalid port %d", c.VectorDB.Qdrant.Port),
			})
		}
	case "chromem":
		// Path may be empty (in-memory); nothing to check.
	default:
		errs = append(errs, ValidationError{
			Field:   "vectordb.provider",
			Message: fmt.Sprintf("unsupported provider %q (supported: qdrant, chromem)", c.VectorDB.Provider),
		})
	}
	return errs
}

func (c *Config) validateContext() ValidationErrors {
	var errs ValidationErrors

	if c.Context.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "context.max_tokens",
			Message: fmt.Sprintf("context ceiling must be positive, got %d", c.Context.MaxTokens),
		})
	}
	sum := c.Context.HistoryRatio + c.Context.SystemRatio + c.Context.UserRatio
	if math.Abs(sum-1.0) > 1e-9 {
		errs = append(errs, ValidationError{
			Field:   "context",
			Message: fmt.Sprintf("budget ratios must sum to 1.0, got %.4f", sum),
		})
	}
	for _, r := range []struct {
		field string
		v     float64
	}{
		{"context.history_ratio", c.Context.HistoryRatio},
		{"context.system_ratio", c.Context.SystemRatio},
		{"context.user_ratio", c.Context.UserRatio},
	} {
		if r.v < 0 || r.v > 1 {
			errs = append(errs, ValidationError{
				Field:   r.field,
				Message: fmt.Sprintf("ratio out of range [0,1]: %.4f", r.v),
			})
		}
	}
	return errs
}

func (c *Config) validateSplitter() ValidationErrors {
	var errs ValidationErrors

	if c.Splitter.HardCeiling < c.Splitter.ChunkSize {
		errs = append(errs, ValidationError{
			Field:   "splitter.hard_ceiling",
			Message: fmt.Sprintf("hard ceiling %d below chunk size %d", c.Splitter.HardCeiling, c.Splitter.ChunkSize),
		})
	}
	return errs
}
