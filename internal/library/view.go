package library

import (
	"reelhouse/internal/api"
	"reelhouse/internal/fileutil"
)

// View converts an asset to its API representation, deriving the effective
// status from the filesystem.
func View(asset *Asset) api.Asset {
	if asset == nil {
		return api.Asset{}
	}
	converted := asset.ArtifactPath(ArtifactConverted)
	exists, _ := fileutil.Exists(converted)
	return api.Asset{
		ID:              asset.ID,
		Title:           asset.Title,
		Year:            asset.Year,
		Season:          asset.Season,
		Episode:         asset.Episode,
		CatalogID:       asset.CatalogID,
		MediaType:       string(asset.MediaType),
		TriagePath:      asset.TriagePath,
		BaseName:        asset.BaseName,
		Extension:       asset.Extension,
		DurationSeconds: asset.DurationSeconds,
		Status:          string(asset.Status),
		EffectiveStatus: string(EffectiveStatus(asset, exists)),
		OriginalPath:    asset.ArtifactPath(ArtifactOriginal),
		ConvertedPath:   converted,
		CreatedAt:       api.FormatTime(asset.CreatedAt),
		UpdatedAt:       api.FormatTime(asset.UpdatedAt),
	}
}

// Views converts a slice of assets.
func Views(assets []*Asset) []api.Asset {
	out := make([]api.Asset, 0, len(assets))
	for _, asset := range assets {
		out = append(out, View(asset))
	}
	return out
}
