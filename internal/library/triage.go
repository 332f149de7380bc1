package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"reelhouse/internal/api"
	"reelhouse/internal/fileutil"
	"reelhouse/internal/logging"
	"reelhouse/internal/services"
)

// ListUntriaged returns video files under the triage directory that have not
// been admitted yet, in lexical order.
func (s *Service) ListUntriaged(ctx context.Context) ([]string, error) {
	admitted, err := s.store.TriagePaths(ctx)
	if err != nil {
		return nil, err
	}
	root := s.cfg.Paths.TriageDir
	var videos []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.isVideo(path) {
			return nil
		}
		if _, ok := admitted[path]; !ok {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk triage directory: %w", err)
	}
	return videos, nil
}

func (s *Service) isVideo(path string) bool {
	return slices.Contains(s.cfg.Library.VideoExtensions, strings.ToLower(filepath.Ext(path)))
}

func (s *Service) resolveTriagePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", services.Wrap(services.ErrValidation, "library", "admit", "triage path is required", nil)
	}
	root := s.cfg.Paths.TriageDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", services.Wrap(services.ErrValidation, "library", "admit", path+" is outside the triage directory", nil)
	}
	return path, nil
}

// Admit records a triage file as a library asset and hard-links it into the
// library as the asset's original artifact.
func (s *Service) Admit(ctx context.Context, req api.AdmitRequest) (*Asset, error) {
	triagePath, err := s.resolveTriagePath(req.TriagePath)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "admit", "title is required", nil)
	}
	if req.Year < 0 {
		return nil, services.Wrap(services.ErrValidation, "library", "admit", "year must not be negative", nil)
	}
	if !s.isVideo(triagePath) {
		return nil, services.Wrap(services.ErrValidation, "library", "admit", triagePath+" is not a video file", nil)
	}
	exists, err := fileutil.Exists(triagePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "library", "admit", triagePath, err)
	}
	if !exists {
		return nil, services.Wrap(services.ErrNotFound, "library", "admit", triagePath, nil)
	}

	triaged, err := s.store.IsTriaged(ctx, triagePath)
	if err != nil {
		return nil, err
	}
	if triaged {
		return nil, services.Wrap(services.ErrValidation, "library", "admit", triagePath+" is already triaged", nil)
	}

	mediaType := MediaMovie
	if req.Season != nil || req.Episode != nil {
		mediaType = MediaEpisode
	}
	asset, err := s.store.Insert(ctx, NewAsset{
		Title:      title,
		Year:       req.Year,
		Season:     req.Season,
		Episode:    req.Episode,
		CatalogID:  strings.TrimSpace(req.CatalogID),
		MediaType:  mediaType,
		TriagePath: triagePath,
		BaseName:   BaseName(title, req.Year, req.Season, req.Episode),
		Extension:  strings.ToLower(filepath.Ext(triagePath)),
	})
	if err != nil {
		return nil, err
	}

	original := asset.ArtifactPath(ArtifactOriginal)
	if err := fileutil.LinkOrCopy(triagePath, original); err != nil {
		kind := services.ErrValidation
		if errors.Is(err, fs.ErrExist) {
			kind = services.ErrConflict
		}
		if _, delErr := s.store.Delete(context.WithoutCancel(ctx), asset.ID); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return nil, services.Wrap(kind, "library", "admit", "link "+original, err)
	}
	s.logger.Info("asset admitted",
		logging.String(logging.FieldEventType, "asset_admitted"),
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("triage_path", triagePath),
		logging.String("original", original),
	)
	return asset, nil
}

// DeleteAsset removes the asset record and then its artifact files. The
// shared cover is removed only when no other asset uses it. Files that
// cannot be removed are logged; the record stays deleted.
func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return services.Wrap(services.ErrNotFound, "library", "delete", fmt.Sprintf("asset %d", id), nil)
	}

	paths := make([]string, 0, 16)
	for _, kind := range ArtifactKinds() {
		paths = append(paths, asset.ArtifactPath(kind))
	}
	for _, lang := range append([]string{""}, s.cfg.Subtitles.Languages...) {
		paths = append(paths, asset.SubtitlePath(lang, "srt"), asset.SubtitlePath(lang, "vtt"))
	}
	remaining, err := s.store.CountCoverSharers(ctx, asset)
	if err != nil {
		return err
	}
	if remaining == 0 {
		paths = append(paths, asset.ArtifactPath(ArtifactCover))
	}

	removed := 0
	for _, path := range paths {
		ok, err := fileutil.RemoveIfExists(path)
		if err != nil {
			logging.WarnWithContext(s.logger, "artifact removal failed", "asset_artifact_remove_failed",
				logging.Int64(logging.FieldAssetID, id),
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		if ok {
			removed++
		}
	}
	s.logger.Info("asset deleted",
		logging.String(logging.FieldEventType, "asset_deleted"),
		logging.Int64(logging.FieldAssetID, id),
		logging.Int("files_removed", removed),
	)
	return nil
}
