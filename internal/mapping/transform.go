package mapping

import (
	"strings"

	"lr2ise/internal/search"
)

// Field names tried in order for each extracted value.
var (
	userFields      = []string{"username", "login", "account"}
	sourceIPFields  = []string{"sourceIP", "sip", "originIp"}
	timestampFields = []string{"timestamp", "normalDate", "logDate"}
	agentFields     = []string{"logSource", "logSourceName", "logSourceHost"}
)

// Transform filters records down to logon events and maps each into an
// IdentityMapping, preserving input order. Records that fail extraction are
// reported in Result.Warnings and never stop the pass.
func Transform(records []search.Record, opts Options) Result {
	marker := opts.LogonMarker
	if marker == "" {
		marker = DefaultLogonMarker
	}
	domain := strings.TrimSpace(opts.Domain)
	fallback := strings.TrimSpace(opts.AgentFallback)

	result := Result{
		Mappings: make([]IdentityMapping, 0, len(records)),
		Warnings: []MalformedRecordWarning{},
	}
	for i, record := range records {
		description, _ := stringValue(record, "description")
		if !strings.Contains(description, marker) {
			result.Skipped++
			continue
		}
		m, warn := extract(i, record, domain, fallback)
		if warn != nil {
			result.Warnings = append(result.Warnings, *warn)
			continue
		}
		result.Mappings = append(result.Mappings, m)
	}
	return result
}

func extract(index int, record search.Record, domain, agentFallback string) (IdentityMapping, *MalformedRecordWarning) {
	malformed := func(field, reason string) *MalformedRecordWarning {
		return &MalformedRecordWarning{Index: index, Field: field, Reason: reason}
	}

	user, ok := firstString(record, userFields)
	if !ok {
		return IdentityMapping{}, malformed("username", "missing")
	}
	user = normalizeUser(user)
	if user == "" {
		return IdentityMapping{}, malformed("username", "empty")
	}

	rawIP, ok := firstString(record, sourceIPFields)
	if !ok {
		return IdentityMapping{}, malformed("sourceIP", "missing")
	}
	ip, err := normalizeIP(rawIP)
	if err != nil {
		return IdentityMapping{}, malformed("sourceIP", err.Error())
	}

	rawTS, ok := firstValue(record, timestampFields)
	if !ok {
		return IdentityMapping{}, malformed("timestamp", "missing")
	}
	ts, err := normalizeTimestamp(rawTS)
	if err != nil {
		return IdentityMapping{}, malformed("timestamp", err.Error())
	}

	agent := agentLabel(record)
	if agent == "" {
		agent = agentFallback
	}
	if agent == "" {
		return IdentityMapping{}, malformed("logSource", "missing")
	}

	if domain == "" {
		return IdentityMapping{}, malformed("domain", "not configured")
	}
	return IdentityMapping{User: user, SourceIP: ip, Agent: agent, Timestamp: ts, Domain: domain}, nil
}
