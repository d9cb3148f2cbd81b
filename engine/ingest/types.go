package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// RawTrial is the wire format of one registry record as published on the
// ingest subject. Field names follow the registry's export schema.
type RawTrial struct {
	NCTID               string   `json:"nct_id"`
	BriefTitle          string   `json:"brief_title"`
	OfficialTitle       string   `json:"official_title"`
	BriefSummary        string   `json:"brief_summary"`
	DetailedDescription string   `json:"detailed_description"`
	Phase               string   `json:"phase"`
	OverallStatus       string   `json:"overall_status"`
	Enrollment          int      `json:"enrollment"`
	LeadSponsor         string   `json:"lead_sponsor"`
	SponsorClass        string   `json:"sponsor_class"`
	Conditions          []string `json:"conditions"`
	Interventions       []string `json:"interventions"`
	Locations           []string `json:"locations"`
	Keywords            []string `json:"keywords"`
	StartDate           string   `json:"start_date"`
	HasDMC              bool     `json:"has_dmc"`
	Allocation          string   `json:"allocation"`
	Masking             string   `json:"masking"`
}

var nctIDPattern = regexp.MustCompile(`^NCT\d{8}$`)

// ValidateRaw rejects records that cannot be indexed at all. Everything
// else is tolerated; missing fields just lower the quality score.
func ValidateRaw(t RawTrial) error {
	id := strings.ToUpper(strings.TrimSpace(t.NCTID))
	if id == "" {
		return fmt.Errorf("ingest: missing nct_id")
	}
	if !nctIDPattern.MatchString(id) {
		return fmt.Errorf("ingest: malformed nct_id %q", t.NCTID)
	}
	if strings.TrimSpace(t.BriefTitle) == "" {
		return fmt.Errorf("ingest: trial %s has no title", id)
	}
	if t.Enrollment < 0 {
		return fmt.Errorf("ingest: trial %s has negative enrollment", id)
	}
	return nil
}
