package profile

// Assemble merges task outcomes onto raw. A task with no outcome, or with a
// fallback outcome, takes its default value and is listed in DegradedTasks.
// The result does not depend on the order of outcomes.
func Assemble(raw RawProfile, outcomes []Outcome) EnrichedProfile {
	byTask := make(map[TaskName]Outcome, len(outcomes))
	for _, o := range outcomes {
		if prev, seen := byTask[o.Task]; seen && !prev.Fallback() {
			continue
		}
		byTask[o.Task] = o
	}

	summary, _ := raw.Summary()
	out := EnrichedProfile{
		RawProfile:      raw,
		EnhancedSummary: summary,
		ExtractedSkills: []string{},
		SEOKeywords:     []string{},
		DegradedTasks:   []TaskName{},
	}

	for _, task := range AllTasks() {
		o, ok := byTask[task]
		if !ok || o.Fallback() {
			out.DegradedTasks = append(out.DegradedTasks, task)
			continue
		}
		switch task {
		case TaskSummary:
			out.EnhancedSummary = o.Text
		case TaskSkills:
			out.ExtractedSkills = append([]string{}, o.Items...)
		case TaskKeywords:
			out.SEOKeywords = append([]string{}, o.Items...)
		}
	}
	return out
}
