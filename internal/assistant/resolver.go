package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/metrics"
)

const (
	DefaultMaxMessageLength     = 1000
	DefaultLongMessageThreshold = 80

	modelUnavailableError = "I couldn't reach the assistant right now. Please try again in a moment."
)

// ModelRequest is one single-shot classification call.
type ModelRequest struct {
	Model  string
	System string
	User   string
}

// Model returns the raw text of the model's answer.
type Model interface {
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// ResolverConfig selects models and input limits.
type ResolverConfig struct {
	ShortModel           string
	LongModel            string
	LongMessageThreshold int
	MaxMessageLength     int
	DefaultCurrency      string
}

// Resolver maps a message onto a ResolvedIntent with one model call.
type Resolver struct {
	model   Model
	system  string
	cfg     ResolverConfig
	log     zerolog.Logger
	metrics metrics.Collector
}

// NewResolver renders the system prompt from registry once.
func NewResolver(model Model, registry *Registry, cfg ResolverConfig, log zerolog.Logger, m metrics.Collector) *Resolver {
	if cfg.LongMessageThreshold <= 0 {
		cfg.LongMessageThreshold = DefaultLongMessageThreshold
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "CAD"
	}
	if cfg.LongModel == "" {
		cfg.LongModel = cfg.ShortModel
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &Resolver{
		model:   model,
		system:  BuildSystemPrompt(registry, cfg.DefaultCurrency),
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
}

// SystemPrompt returns the rendered instructions.
func (r *Resolver) SystemPrompt() string {
	return r.system
}

// ChooseModel picks the model for a message by its length in runes.
func (r *Resolver) ChooseModel(message string) string {
	if utf8.RuneCountInString(message) < r.cfg.LongMessageThreshold {
		return r.cfg.ShortModel
	}
	return r.cfg.LongModel
}

// Resolve never fails: every problem becomes an unresolved intent with an explanation.
func (r *Resolver) Resolve(ctx context.Context, message, userID string) ResolvedIntent {
	start := time.Now()
	message = truncateRunes(message, r.cfg.MaxMessageLength)

	if strings.TrimSpace(message) == "" {
		r.metrics.RecordResolution("empty", time.Since(start))
		return unresolved(userID, "")
	}

	model := r.ChooseModel(message)
	raw, err := r.model.Generate(ctx, ModelRequest{
		Model:  model,
		System: r.system,
		User:   userTurn(userID, message),
	})
	if err != nil {
		r.log.Error().Err(err).Str("model", model).Msg("Intent model call failed")
		r.metrics.RecordResolution("model_error", time.Since(start))
		intent := unresolved(userID, modelUnavailableError)
		intent.Message = message
		return intent
	}

	intent, parseErr := decodeIntent(raw, userID)
	intent.Message = message

	outcome := "resolved"
	switch {
	case parseErr != nil:
		outcome = "parse_error"
		r.log.Warn().Err(parseErr).Str("raw", raw).Msg("Model returned an unparseable intent")
	case intent.IsUnresolved():
		outcome = "unresolved"
	}
	r.metrics.RecordResolution(outcome, time.Since(start))
	r.log.Debug().Str("model", model).Str("operation", string(intent.Operation)).Msg("Intent resolved")
	return intent
}

// decodeIntent parses the model's JSON. The returned intent is always usable;
// the error is only for logging.
func decodeIntent(raw, userID string) (ResolvedIntent, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		err := fmt.Errorf("empty response")
		return unresolved(userID, "Failed to parse LLM JSON: "+err.Error()), err
	}

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()
	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return unresolved(userID, "Failed to parse LLM JSON: "+err.Error()), err
	}
	if dec.More() {
		err := fmt.Errorf("unexpected data after top-level value")
		return unresolved(userID, "Failed to parse LLM JSON: "+err.Error()), err
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		err := fmt.Errorf("top-level value is %s, want object", jsonType(parsed))
		return unresolved(userID, "Failed to parse LLM JSON: "+err.Error()), err
	}

	intent := ResolvedIntent{Operation: Unresolved}
	if tool, ok := obj["tool"].(string); ok {
		intent.Operation = Operation(tool)
	}

	args, ok := obj["arguments"].(map[string]interface{})
	if !ok {
		args = make(map[string]interface{})
	}
	// The sender is the only identity an operation may act for.
	args["user_id"] = userID
	intent.Arguments = args

	if msg, ok := obj["error"].(string); ok {
		intent.Error = msg
	}
	return intent, nil
}

// cleanModelJSON strips Markdown code fences the model may add despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json).
	idx := strings.Index(s, "\n")
	if idx == -1 {
		return strings.Trim(s, "`")
	}
	s = s[idx+1:]
	if end := strings.LastIndex(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
