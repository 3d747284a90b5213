package model

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectRendering ProjectStatus = "rendering"
	ProjectCompleted ProjectStatus = "completed"
	ProjectFailed    ProjectStatus = "failed"
)

// Brand - параметры оформления, общие для всех сцен проекта.
type Brand struct {
	AccentColor     string `json:"accentColor" yaml:"accent_color"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"background_color,omitempty"`
	TextColor       string `json:"textColor,omitempty" yaml:"text_color,omitempty"`
	LogoURL         string `json:"logoUrl,omitempty" yaml:"logo_url,omitempty"`
	CallToActionURL string `json:"callToActionUrl,omitempty" yaml:"call_to_action_url,omitempty"`
	// Seed для зерна и частиц. Один и тот же seed даёт одинаковые кадры.
	Seed uint64 `json:"seed" yaml:"seed"`
}

type Project struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	TargetDurationMs int           `json:"targetDurationMs"`
	Brand            Brand         `json:"brand"`
	Status           ProjectStatus `json:"status"`
	ActiveRenderID   *uuid.UUID    `json:"activeRenderId,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}
