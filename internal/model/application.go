package model

const (
	ApplicationApplied   = "APPLIED"
	ApplicationInterview = "INTERVIEW"
	ApplicationRejected  = "REJECTED"
	ApplicationOffer     = "OFFER"
)

// Application tracks one job the user applied to. AppliedDate is a
// YYYY-MM-DD calendar date.
type Application struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Company     string `json:"company"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	AppliedDate string `json:"applied_date"`
	MatchScore  int    `json:"match_score"`
	JobLink     string `json:"job_link"`
	Notes       string `json:"notes"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
