package templates

import "time"

const (
	DefaultCategory  = "general"
	UploadedCategory = "user_uploaded"
)

type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Category    string     `json:"category"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// UploadRequest fields are pointers so a missing key can be told apart from
// an empty string.
type UploadRequest struct {
	ID          *string `json:"id" validate:"required,min=1"`
	Name        *string `json:"name" validate:"required"`
	Description *string `json:"description" validate:"required"`
	Content     *string `json:"content" validate:"required"`
}

// ToTemplate builds the stored record for an upload stamped at now.
func (u UploadRequest) ToTemplate(now time.Time) Template {
	ts := now.UTC()
	return Template{
		ID:          deref(u.ID),
		Name:        deref(u.Name),
		Description: deref(u.Description),
		Content:     deref(u.Content),
		Category:    UploadedCategory,
		CreatedAt:   &ts,
		UpdatedAt:   &ts,
	}
}

type APIResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
