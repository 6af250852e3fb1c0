package catalog

import (
	"context"
	"time"

	"studio-backend/internal/entitlement"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeTXT  = "text/plain"
	mimeMP3  = "audio/mpeg"
	mimeMP4  = "video/mp4"
	mimeWAV  = "audio/wav"
)

// DefaultModules returns the built-in module descriptors used when no
// database is configured.
func DefaultModules() []ModuleDescriptor {
	now := time.Unix(1735689600, 0).UTC()
	return []ModuleDescriptor{
		{
			ID:          "doc-generator",
			Name:        "Document Generator",
			Description: "Long-form documents from a topic and reference material.",
			BaseCost:    20,
			MinimumCost: 15,
			Options: []Option{
				{ID: "doc-report", Label: "Report", Category: "document_type", Multiplier: 1},
				{ID: "doc-proposal", Label: "Proposal", Category: "document_type", Multiplier: 1.5},
				{ID: "doc-whitepaper", Label: "Whitepaper", Category: "document_type", Multiplier: 2, PremiumOnly: true},
			},
			Flags: []Flag{
				{ID: "seo", Label: "SEO optimization", Multiplier: 1.1},
				{ID: "summary", Label: "Executive summary", FlatAdd: 5},
				{ID: "auto-tagging", Label: "Auto-tagging", FlatAdd: 2, FeatureArea: entitlement.FeatureAnalytics},
			},
			QuantityDims: []QuantityDim{
				{Field: "page_count", Label: "Pages", FreeThreshold: 5, BucketSize: 5, PerBucketCost: 1.33, CeilingKind: entitlement.KindBatchSize},
			},
			RequiredFields: []string{"topic", "tone", "audience"},
			Attachments: AttachmentPolicy{
				AllowedTypes: []string{mimePDF, mimeDOCX, mimeTXT},
				MaxSizeBytes: 10 << 20,
				MaxCount:     3,
			},
			CreatedAt: now,
		},
		{
			ID:          "social-composer",
			Name:        "Social Post Composer",
			Description: "Platform-tuned social posts with optional scheduling.",
			BaseCost:    5,
			MinimumCost: 3,
			Options: []Option{
				{ID: "post-short", Label: "Short post", Category: "post_type", Multiplier: 1},
				{ID: "post-thread", Label: "Thread", Category: "post_type", Multiplier: 1.8},
				{ID: "post-campaign", Label: "Campaign", Category: "post_type", Multiplier: 3, PremiumOnly: true},
			},
			Flags: []Flag{
				{ID: "cta", Label: "Call to action", FlatAdd: 1},
				{ID: "hashtags", Label: "Hashtag research", Multiplier: 1.2},
				{ID: "schedule", Label: "Scheduled publishing", FlatAdd: 2, FeatureArea: entitlement.FeatureScheduling},
			},
			QuantityDims: []QuantityDim{
				{Field: "audience_size", Label: "Audience", FreeThreshold: 500, BucketSize: 500, PerBucketCost: 1, CeilingKind: entitlement.KindAudienceSize},
			},
			RequiredFields: []string{"topic", "platform", "tone"},
			Attachments: AttachmentPolicy{
				AllowedTypes: []string{"image/png", "image/jpeg"},
				MaxSizeBytes: 2 << 20,
				MaxCount:     4,
			},
			CreatedAt: now,
		},
		{
			ID:          "transcriber",
			Name:        "Transcription",
			Description: "Audio and video transcription with optional diarization.",
			BaseCost:    10,
			MinimumCost: 8,
			Options: []Option{
				{ID: "tx-standard", Label: "Standard", Category: "accuracy", Multiplier: 1},
				{ID: "tx-enhanced", Label: "Enhanced", Category: "accuracy", Multiplier: 1.6, PremiumOnly: true},
			},
			Flags: []Flag{
				{ID: "diarization", Label: "Speaker diarization", Multiplier: 1.4, FeatureArea: entitlement.FeatureMedia},
				{ID: "timestamps", Label: "Timestamps", FlatAdd: 2},
				{ID: "tx-summary", Label: "Summary", FlatAdd: 4},
			},
			QuantityDims: []QuantityDim{
				{Field: "duration_minutes", Label: "Minutes", FreeThreshold: 10, BucketSize: 10, PerBucketCost: 3},
			},
			RequiredFields: []string{"language", "source_media"},
			Attachments: AttachmentPolicy{
				AllowedTypes: []string{mimeMP3, mimeWAV, mimeMP4},
				MaxSizeBytes: 500 << 20,
				MaxCount:     1,
				RequiredFor:  "source_media",
			},
			CreatedAt: now,
		},
		{
			ID:          "recruit-analyzer",
			Name:        "Recruiting Analyzer",
			Description: "Candidate document screening against a role profile.",
			BaseCost:    12,
			MinimumCost: 10,
			Options: []Option{
				{ID: "ra-screen", Label: "Screen", Category: "analysis_type", Multiplier: 1},
				{ID: "ra-deep", Label: "Deep analysis", Category: "analysis_type", Multiplier: 2.2, PremiumOnly: true, FeatureArea: entitlement.FeatureHR},
			},
			Flags: []Flag{
				{ID: "ranking", Label: "Candidate ranking", Multiplier: 1.25, FeatureArea: entitlement.FeatureHR},
				{ID: "gap-report", Label: "Skill gap report", FlatAdd: 3},
			},
			QuantityDims: []QuantityDim{
				{Field: "candidate_count", Label: "Candidates", FreeThreshold: 1, BucketSize: 1, PerBucketCost: 2, CeilingKind: entitlement.KindBatchSize},
			},
			RequiredFields: []string{"role_profile", "seniority"},
			Attachments: AttachmentPolicy{
				AllowedTypes: []string{mimePDF, mimeDOCX},
				MaxSizeBytes: 10 << 20,
				MaxCount:     10,
				RequiredFor:  "candidate_documents",
			},
			CreatedAt: now,
		},
	}
}

// SeedDefaults upserts the built-in descriptors so a fresh database
// serves the same catalogue as the in-memory fallback.
func SeedDefaults(ctx context.Context, repo *PGRepo) error {
	for _, d := range DefaultModules() {
		if err := repo.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
