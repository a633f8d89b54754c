package dto

type CreatePostDTO struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// UpdatePostDTO fields are all optional pointers
type UpdatePostDTO struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}
