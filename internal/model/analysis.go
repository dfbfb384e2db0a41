package model

// AnalysisRecord is the persisted outcome of a resume/job match.
type AnalysisRecord struct {
	ID                     string   `json:"id"`
	UserID                 string   `json:"user_id"`
	ResumeID               string   `json:"resume_id"`
	JobID                  string   `json:"job_id"`
	MatchScore             int      `json:"match_score"`
	MatchedKeywords        []string `json:"matched_keywords"`
	MissingKeywords        []string `json:"missing_keywords"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	Ctime                  int64    `json:"ctime"`
}
