package mapping

import (
	"fmt"
	"strings"

	"lr2ise/internal/services"
)

// DefaultLogonMarker is the description substring that marks a logon record.
const DefaultLogonMarker = "Logon"

// IdentityMapping binds a user to a source IP for the passive-identity store.
type IdentityMapping struct {
	User      string `json:"user"`
	SourceIP  string `json:"srcIpAddress"`
	Agent     string `json:"agentInfo"`
	Timestamp string `json:"timestamp"`
	Domain    string `json:"domain"`
}

// Validate reports the first blank field. A mapping that fails validation
// must not be published.
func (m IdentityMapping) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"user", m.User},
		{"source IP", m.SourceIP},
		{"agent", m.Agent},
		{"timestamp", m.Timestamp},
		{"domain", m.Domain},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("identity mapping %s is empty", f.name)
		}
	}
	return nil
}

func (m IdentityMapping) String() string {
	return fmt.Sprintf("%s\\%s@%s", m.Domain, m.User, m.SourceIP)
}

// MalformedRecordWarning describes a logon record that could not be mapped.
type MalformedRecordWarning struct {
	Index  int
	Field  string
	Reason string
}

func (w MalformedRecordWarning) Error() string {
	return fmt.Sprintf("record %d: %s %s", w.Index, w.Field, w.Reason)
}

// Is matches services.ErrMalformedRecord.
func (w MalformedRecordWarning) Is(target error) bool {
	return target == services.ErrMalformedRecord
}

// Options controls a transformation pass.
type Options struct {
	// Domain is applied to every mapping. It is never read from records.
	Domain string
	// LogonMarker is matched case-sensitively against the description.
	LogonMarker string
	// AgentFallback labels records that carry no log source. Empty means
	// such records are reported as malformed.
	AgentFallback string
}

// Result is the output of Transform.
type Result struct {
	Mappings []IdentityMapping
	Warnings []MalformedRecordWarning
	// Skipped counts records without the logon marker.
	Skipped int
}
