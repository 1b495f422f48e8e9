package preview

import (
	"context"
	"strings"

	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/apify"
	"github.com/petroleumjelliffe/tiktok-sound-trends/internal/database"
)

// CacheRequest is a client-side discovered preview to write back
type CacheRequest struct {
	SoundID         apify.FlexString `json:"sound_id"`
	Region          string           `json:"region"`
	PreviewURL      string           `json:"preview_url"`
	PlayURL         string           `json:"play_url"`
	CoverURL        string           `json:"cover_url"`
	Duration        *float64         `json:"duration"`
	IsCommerceMusic *bool            `json:"is_commerce_music"`
	UserCount       *float64         `json:"user_count"`
}

// Patch converts the request into the columns it may update. play_url
// only travels with a preview_url and defaults to it.
func (req CacheRequest) Patch() database.SoundPatch {
	var patch database.SoundPatch

	if req.PreviewURL != "" {
		preview := req.PreviewURL
		play := req.PlayURL
		if play == "" {
			play = preview
		}
		patch.PreviewURL = &preview
		patch.PlayURL = &play
	}
	if req.CoverURL != "" {
		cover := req.CoverURL
		patch.CoverURL = &cover
	}
	if req.Duration != nil {
		d := int(*req.Duration)
		patch.Duration = &d
	}
	if req.IsCommerceMusic != nil {
		v := *req.IsCommerceMusic
		patch.IsCommerceMusic = &v
	}
	if req.UserCount != nil {
		n := int64(*req.UserCount)
		patch.UserCount = &n
	}
	return patch
}

// CachePreview patches the latest-state row named by the request. skipped
// is true when the request carried nothing to update.
func (r *Resolver) CachePreview(ctx context.Context, req CacheRequest) (skipped bool, err error) {
	soundID := strings.TrimSpace(string(req.SoundID))
	region := strings.ToUpper(strings.TrimSpace(req.Region))
	if soundID == "" || region == "" {
		return false, ErrMissingKey
	}

	patch := req.Patch()
	if patch.Empty() {
		return true, nil
	}
	if r.cache == nil {
		return true, nil
	}

	if _, err := r.cache.PatchSound(ctx, soundID, region, patch); err != nil {
		return false, err
	}
	return false, nil
}
