package crag

type Mode string

const (
	ModeAnalyze      Mode = "analyze"
	ModeChat         Mode = "chat"
	ModeTailor       Mode = "tailor"
	ModeTailorDirect Mode = "tailor_direct"
	ModeMatch        Mode = "match"
)

const (
	insufficientContextMessage = "Could not retrieve enough context. Upload resume and jobs first."
	analyzeFailedMessage       = "Generation failed. Try again with a more specific query."
	generationFailedMessage    = "Generation failed. Please retry."
	matchFailedMessage         = "Matching failed. Please retry."
	chatIncompleteAnswer       = "I could not produce a complete answer. Please try again."
)

// Result is a fully populated generation outcome. Every constructor in
// this package fills all fields, so encoded results always carry every key
// of their mode.
type Result interface {
	Mode() Mode
}

type AnalyzeResult struct {
	MissingKeywords        []string `json:"missing_keywords"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	RewrittenBullets       []string `json:"rewritten_bullets"`
}

func (r *AnalyzeResult) Mode() Mode { return ModeAnalyze }

type ChatResult struct {
	Answer string `json:"answer"`
}

func (r *ChatResult) Mode() Mode { return ModeChat }

type TailorResult struct {
	TailoredBullets []string `json:"tailored_bullets"`
	CoverLetter     string   `json:"cover_letter"`

	mode Mode
}

func (r *TailorResult) Mode() Mode {
	if r.mode == "" {
		return ModeTailor
	}
	return r.mode
}

// MatchResult keeps ats_score as a copy of match_score for older clients.
type MatchResult struct {
	MatchScore             int      `json:"match_score"`
	ATSScore               int      `json:"ats_score"`
	MatchedKeywords        []string `json:"matched_keywords"`
	MissingKeywords        []string `json:"missing_keywords"`
	SkillGaps              []string `json:"skill_gaps"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
	TailoredResumeBullets  []string `json:"tailored_resume_bullets"`
	CoverLetterSnippet     string   `json:"cover_letter_snippet"`
}

func (r *MatchResult) Mode() Mode { return ModeMatch }

func insufficientAnalyze() *AnalyzeResult {
	return &AnalyzeResult{
		MissingKeywords:        []string{},
		ImprovementSuggestions: []string{insufficientContextMessage},
		RewrittenBullets:       []string{},
	}
}

func failedAnalyze() *AnalyzeResult {
	return &AnalyzeResult{
		MissingKeywords:        []string{},
		ImprovementSuggestions: []string{analyzeFailedMessage},
		RewrittenBullets:       []string{},
	}
}

func insufficientTailor() *TailorResult {
	return &TailorResult{TailoredBullets: []string{}, CoverLetter: insufficientContextMessage, mode: ModeTailor}
}

func failedTailor(mode Mode) *TailorResult {
	return &TailorResult{TailoredBullets: []string{}, CoverLetter: generationFailedMessage, mode: mode}
}

func failedMatch() *MatchResult {
	return &MatchResult{
		MatchScore:             0,
		ATSScore:               0,
		MatchedKeywords:        []string{},
		MissingKeywords:        []string{},
		SkillGaps:              []string{},
		ImprovementSuggestions: []string{matchFailedMessage},
		TailoredResumeBullets:  []string{},
		CoverLetterSnippet:     "",
	}
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
