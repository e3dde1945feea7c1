package testplan

import (
	"strings"
)

// Record is the flat storage representation of a plan. Multi-valued
// selections are joined into comma separated strings; the loader must
// split them symmetrically. This mirrors the submission contract the
// backend has always stored.
type Record struct {
	RequestID              string          `json:"request_id"`
	BasicTests             string          `json:"basic_tests"`
	PerformanceTests       string          `json:"performance_tests"`
	SecurityTests          string          `json:"security_tests"`
	UsabilityEnabled       bool            `json:"usability_enabled"`
	UsabilityAspects       string          `json:"usability_aspects"`
	CompatibilityEnabled   bool            `json:"compatibility_enabled"`
	CompatibilityPlatforms string          `json:"compatibility_platforms"`
	SetIDs                 string          `json:"set_ids"`
	CustomItems            string          `json:"custom_items"`
	Checklist              []ChecklistItem `json:"checklist"`
	TotalEstimatedHours    int             `json:"total_estimated_hours"`
}

// Flatten converts a plan into its storage record.
func Flatten(plan Plan) Record {
	return Record{
		RequestID:              plan.RequestID,
		BasicTests:             joinValues(plan.Selections.Basic),
		PerformanceTests:       joinValues(plan.Selections.Performance),
		SecurityTests:          joinValues(plan.Selections.Security),
		UsabilityEnabled:       plan.Selections.Usability.Enabled,
		UsabilityAspects:       joinValues(plan.Selections.Usability.Aspects),
		CompatibilityEnabled:   plan.Selections.Compatibility.Enabled,
		CompatibilityPlatforms: joinValues(plan.Selections.Compatibility.Platforms),
		SetIDs:                 joinValues(plan.SetIDs),
		CustomItems:            joinValues(plan.CustomItems),
		Checklist:              plan.Checklist,
		TotalEstimatedHours:    plan.TotalEstimatedHours,
	}
}

// Expand converts a storage record back into a plan.
func Expand(rec Record) Plan {
	return Plan{
		RequestID: rec.RequestID,
		Selections: Selections{
			Basic:       splitValues(rec.BasicTests),
			Performance: splitValues(rec.PerformanceTests),
			Security:    splitValues(rec.SecurityTests),
			Usability: UsabilitySelection{
				Enabled: rec.UsabilityEnabled,
				Aspects: splitValues(rec.UsabilityAspects),
			},
			Compatibility: CompatibilitySelection{
				Enabled:   rec.CompatibilityEnabled,
				Platforms: splitValues(rec.CompatibilityPlatforms),
			},
		},
		SetIDs:              splitValues(rec.SetIDs),
		CustomItems:         splitValues(rec.CustomItems),
		Checklist:           rec.Checklist,
		TotalEstimatedHours: rec.TotalEstimatedHours,
	}
}

func joinValues(values []string) string {
	return strings.Join(values, ",")
}

func splitValues(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
