package tool

import (
	"fmt"
	"math"
	"strings"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

// Argument extraction for model-produced tool calls. Arguments arrive as
// decoded JSON, so numbers are float64 and everything must be checked.
// All failures wrap contract.ErrValidation so the executor can surface
// them to the model as observations instead of aborting the turn.

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, key)
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	return s, nil
}

func intArg(args map[string]any, key string, required bool) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return 0, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
		}
		return 0, nil
	}

	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s must be a whole number", contractx.ErrValidation, key)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", contractx.ErrValidation, key)
	}
}

func int64Arg(args map[string]any, key string, required bool) (int64, error) {
	n, err := intArg(args, key, required)
	return int64(n), err
}
