package dto

type CreateCommentDTO struct {
	Message string `json:"message" binding:"required"`
	PostID  string `json:"post_id" binding:"required"`
}

// UpdateCommentDTO fields are all optional pointers
type UpdateCommentDTO struct {
	Message *string `json:"message"`
	PostID  *string `json:"post_id"`
}
