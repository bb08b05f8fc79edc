package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// FailConfig describes random failure injection: a fraction Rate of requests
// is answered with status Code.
type FailConfig struct {
	Rate float64
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>". An empty string
// disables injection.
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return FailConfig{}, fmt.Errorf("server: invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return FailConfig{}, fmt.Errorf("server: fail rate: %w", err)
			}
			if rate < 0 || rate > 1 {
				return FailConfig{}, fmt.Errorf("server: fail rate %v outside [0,1]", rate)
			}
			cfg.Rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return FailConfig{}, fmt.Errorf("server: fail code: %w", err)
			}
			if code < 400 || code > 599 {
				return FailConfig{}, fmt.Errorf("server: fail code %d is not an error status", code)
			}
			cfg.Code = code
		default:
			return FailConfig{}, fmt.Errorf("server: unknown fail key %q", key)
		}
	}
	return cfg, nil
}

func (c FailConfig) String() string {
	if c.Rate == 0 {
		return ""
	}
	return fmt.Sprintf("rate=%g,code=%d", c.Rate, c.Code)
}
