package model

type Job struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Company     string `json:"company"`
	Role        string `json:"role"`
	Description string `json:"description"`
	IndexedAt   int64  `json:"indexed_at"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
