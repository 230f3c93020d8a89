package model

import "time"

// Provider names an external identity provider.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// ProviderLink ties a provider-issued subject to exactly one local user.
// Unique (provider, subject_id) makes an external identity claimable once;
// unique (user_id, provider) keeps one subject per provider per user.
type ProviderLink struct {
	ID        uint      `gorm:"primaryKey"`
	Provider  Provider  `gorm:"size:32;not null;uniqueIndex:idx_provider_links_subject,priority:1;uniqueIndex:idx_provider_links_user_provider,priority:2"`
	SubjectID string    `gorm:"size:255;not null;uniqueIndex:idx_provider_links_subject,priority:2"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_provider_links_user_provider,priority:1"`
	CreatedAt time.Time
}
