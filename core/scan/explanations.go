package scan

import "sort"

// Explanation is the human-readable context for one issue kind.
type Explanation struct {
	Kind        string `json:"kind"`
	Summary     string `json:"summary"`
	Detail      string `json:"detail"`
	Remediation string `json:"remediation"`
}

// Explanations returns the issue-explanation table. Callers receive a fresh
// slice; the underlying data is load-once immutable.
func Explanations() []Explanation {
	table := []Explanation{
		{
			Kind:    IssueBackupFile,
			Summary: "editor or tooling backup file committed to the repository",
			Detail: "Files ending in .bak, .backup, .orig, .tmp, or ~ are produced by " +
				"editors and merge tools. Version control already preserves history, " +
				"so these copies only add noise and drift out of date.",
			Remediation: "delete via 'repoclean clean --apply'; every deletion is backed up and reversible",
		},
		{
			Kind:    IssueBloatFile,
			Summary: "regenerable cache content checked into the repository",
			Detail: "Cache directories such as __pycache__ or .pytest_cache are " +
				"rebuilt automatically by their tools. Committing them bloats clones " +
				"and causes spurious diffs.",
			Remediation: "delete via 'repoclean clean --apply' and add the directory to your VCS ignore file",
		},
		{
			Kind:    IssueJunkName,
			Summary: "non-descriptive file name",
			Detail: "Prefixes like ENHANCED_, FINAL_, new_, or copy_of_ describe the " +
				"file's editing history rather than its purpose, which makes the tree " +
				"harder to navigate.",
			Remediation: "rename via 'repoclean rename <source> <destination>'; reported only, never auto-deleted",
		},
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Kind < table[j].Kind })
	return table
}

// ExplanationFor looks up one issue kind.
func ExplanationFor(kind string) (Explanation, bool) {
	for _, explanation := range Explanations() {
		if explanation.Kind == kind {
			return explanation, true
		}
	}
	return Explanation{}, false
}
