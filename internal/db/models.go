package db

import (
	"time"

	"github.com/uptrace/bun"
)

type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`
	ID            string     `bun:"id,pk,type:uuid" json:"id"`
	UserID        string     `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Title         string     `bun:"title,notnull" json:"title"`
	DocumentType  string     `bun:"document_type,notnull" json:"document_type"`
	Topic         string     `bun:"topic,notnull" json:"topic"`
	Status        string     `bun:"status,notnull" json:"status"`
	PPTTemplate   string     `bun:"ppt_template,notnull" json:"ppt_template"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	Sections      []*Section `bun:"rel:has-many,join:id=project_id" json:"sections,omitempty"`
}

type Section struct {
	bun.BaseModel `bun:"table:sections,alias:s"`
	ID            string    `bun:"id,pk,type:uuid" json:"id"`
	ProjectID     string    `bun:"project_id,notnull,type:uuid" json:"project_id"`
	Title         string    `bun:"title,notnull" json:"title"`
	Content       string    `bun:"content,notnull" json:"content"`
	ImageURL      *string   `bun:"image_url" json:"image_url"`
	OrderIndex    int       `bun:"order_index,notnull" json:"order_index"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

type Feedback struct {
	bun.BaseModel `bun:"table:feedback,alias:f"`
	ID            string    `bun:"id,pk,type:uuid" json:"id"`
	SectionID     string    `bun:"section_id,notnull,type:uuid" json:"section_id"`
	IsLiked       *bool     `bun:"is_liked" json:"is_liked"`
	Comment       *string   `bun:"comment" json:"comment"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

type Refinement struct {
	bun.BaseModel `bun:"table:refinements,alias:r"`
	ID            string    `bun:"id,pk,type:uuid" json:"id"`
	SectionID     string    `bun:"section_id,notnull,type:uuid" json:"section_id"`
	Prompt        string    `bun:"prompt,notnull" json:"prompt"`
	Result        string    `bun:"result,notnull" json:"result"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// SectionPatch carries the fields of a section update; nil means unchanged.
type SectionPatch struct {
	Title    *string
	Content  *string
	ImageURL *string
}
