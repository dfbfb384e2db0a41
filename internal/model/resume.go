package model

type Resume struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	FileKey   string `json:"file_key"`
	IndexedAt int64  `json:"indexed_at"`
	Ctime     int64  `json:"ctime"`
	Mtime     int64  `json:"mtime"`
}
