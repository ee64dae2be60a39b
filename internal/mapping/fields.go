package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"lr2ise/internal/search"
)

// Epoch values above this are taken as milliseconds.
const epochMillisThreshold = 1e11

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func stringValue(record search.Record, key string) (string, bool) {
	v, ok := record[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// firstString returns the first alias holding a non-blank string.
func firstString(record search.Record, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := stringValue(record, key); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func firstValue(record search.Record, keys []string) (any, bool) {
	for _, key := range keys {
		v, ok := record[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func normalizeUser(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func normalizeIP(raw string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid address %q", raw)
	}
	if addr.Zone() != "" {
		return "", fmt.Errorf("zoned address %q not accepted", raw)
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	return addr.String(), nil
}

// normalizeTimestamp accepts RFC 3339 variants, space-separated datetimes,
// and epoch seconds or milliseconds, returning RFC 3339 in UTC. Datetimes
// without a zone are read as UTC.
func normalizeTimestamp(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return formatUTC(t)
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f)
		}
		return "", fmt.Errorf("unrecognised format %q", v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return "", fmt.Errorf("invalid number %q", v.String())
		}
		return fromEpoch(f)
	case float64:
		return fromEpoch(v)
	case int64:
		return fromEpoch(float64(v))
	case int:
		return fromEpoch(float64(v))
	default:
		return "", fmt.Errorf("unsupported type %T", raw)
	}
}

func fromEpoch(value float64) (string, error) {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return "", errors.New("epoch must be positive")
	}
	if value >= float64(math.MaxInt64) {
		return "", fmt.Errorf("epoch %g out of range", value)
	}
	var t time.Time
	if value > epochMillisThreshold {
		t = time.UnixMilli(int64(value))
	} else {
		sec, frac := math.Modf(value)
		t = time.Unix(int64(sec), int64(frac*1e9))
	}
	return formatUTC(t)
}

// formatUTC renders t as RFC 3339 in UTC. Years outside 1..9999 have no
// RFC 3339 form and are rejected.
func formatUTC(t time.Time) (string, error) {
	t = t.UTC()
	if year := t.Year(); year < 1 || year > 9999 {
		return "", fmt.Errorf("year %d out of range", year)
	}
	return t.Format(time.RFC3339), nil
}

// agentLabel reads the log-source label. logSource may be a name, a numeric
// identifier, or an object carrying a name.
func agentLabel(record search.Record) string {
	for _, key := range agentFields {
		switch v := record[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case map[string]any:
			if name, ok := v["name"].(string); ok && strings.TrimSpace(name) != "" {
				return strings.TrimSpace(name)
			}
		}
	}
	return ""
}
