// Package models contains the board's domain types.
package models

import "time"

// Post is a single board entry.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"num" yaml:"-"`
	Name      string    `gorm:"size:50;not null" json:"name" yaml:"name"`
	Title     string    `gorm:"size:250;not null" json:"title" yaml:"title"`
	Content   string    `gorm:"type:text;not null" json:"content" yaml:"content"`
	IPAddr    string    `gorm:"column:ip_addr;size:64;not null" json:"ip_addr" yaml:"ip_addr"`
	HitCount  int       `gorm:"not null;default:0" json:"hit_count" yaml:"hit_count"`
	CreatedAt time.Time `gorm:"index" json:"reg_date" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string {
	return "bbs_posts"
}
