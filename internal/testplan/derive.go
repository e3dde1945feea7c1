package testplan

// DeriveChecklist produces the review-step checklist from the wizard
// selections. The derivation is deterministic: rows appear in category
// order (basic, performance, security, compatibility, test sets, custom)
// and within a category in selection order.
//
// Total hours intentionally count standardized test sets twice: once via
// the per-item estimates and once via the set's own hour total. This
// mirrors the behavior the planning screens have always shown; product has
// not signed off on changing it.
func DeriveChecklist(sel Selections, sets []TestSet, custom []string) ([]ChecklistItem, int) {
	var checklist []ChecklistItem
	total := 0

	for _, item := range sel.Basic {
		checklist = append(checklist, ChecklistItem{
			Category:       CategoryBasic,
			Item:           item,
			Description:    "Basic functional verification: " + item,
			Required:       true,
			EstimatedHours: basicItemHours,
		})
		total += basicItemHours
	}
	for _, item := range sel.Performance {
		checklist = append(checklist, ChecklistItem{
			Category:       CategoryPerformance,
			Item:           item,
			Description:    "Performance verification: " + item,
			Required:       true,
			EstimatedHours: performanceItemHours,
		})
		total += performanceItemHours
	}
	for _, item := range sel.Security {
		checklist = append(checklist, ChecklistItem{
			Category:       CategorySecurity,
			Item:           item,
			Description:    "Security verification: " + item,
			Required:       true,
			EstimatedHours: securityItemHours,
		})
		total += securityItemHours
	}
	if sel.Compatibility.Enabled {
		for _, platform := range sel.Compatibility.Platforms {
			checklist = append(checklist, ChecklistItem{
				Category:       CategoryCompatibility,
				Item:           platform,
				Description:    "Compatibility check on " + platform,
				Required:       false,
				EstimatedHours: compatibilityItemHours,
			})
			total += compatibilityItemHours
		}
	}
	for _, set := range sets {
		perItem := set.hoursPerItem()
		for _, item := range set.Items {
			checklist = append(checklist, ChecklistItem{
				Category:       set.Name,
				Item:           item,
				Description:    set.Description,
				Required:       true,
				EstimatedHours: perItem,
			})
			total += perItem
		}
		total += set.Hours
	}
	for _, item := range custom {
		checklist = append(checklist, ChecklistItem{
			Category:       CategoryCustom,
			Item:           item,
			Required:       false,
			EstimatedHours: customItemHours,
		})
		total += customItemHours
	}
	return checklist, total
}
