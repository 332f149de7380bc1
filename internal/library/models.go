package library

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MediaType distinguishes films from series episodes.
type MediaType string

const (
	MediaMovie   MediaType = "movie"
	MediaEpisode MediaType = "episode"
)

// ConversionStatus is the persisted conversion state of an asset.
type ConversionStatus string

const (
	StatusNotConverted     ConversionStatus = "not-converted"
	StatusConverting       ConversionStatus = "converting"
	StatusConversionFailed ConversionStatus = "conversion-failed"
	StatusConverted        ConversionStatus = "converted"
)

// ParseStatus maps a stored status string onto a ConversionStatus.
func ParseStatus(value string) (ConversionStatus, bool) {
	switch status := ConversionStatus(strings.TrimSpace(value)); status {
	case StatusNotConverted, StatusConverting, StatusConversionFailed, StatusConverted:
		return status, true
	default:
		return "", false
	}
}

// CallbackStatus maps a callback status onto the state it records. Only the
// two terminal outcomes a processing worker reports are accepted.
func CallbackStatus(value string) (ConversionStatus, bool) {
	switch status := ConversionStatus(strings.TrimSpace(value)); status {
	case StatusConverted, StatusConversionFailed:
		return status, true
	default:
		return "", false
	}
}

// ArtifactKind names one file derived from an asset.
type ArtifactKind string

const (
	ArtifactOriginal   ArtifactKind = "original"
	ArtifactConverting ArtifactKind = "converting"
	ArtifactConverted  ArtifactKind = "converted"
	ArtifactSmall      ArtifactKind = "small"
	ArtifactLarge      ArtifactKind = "large"
	ArtifactCover      ArtifactKind = "cover"
)

// ArtifactKinds lists the per-asset artifacts in deletion order. The shared
// cover is not included.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactOriginal, ArtifactConverting, ArtifactConverted, ArtifactSmall, ArtifactLarge}
}

// Asset is one admitted media file.
type Asset struct {
	ID              int64
	Title           string
	Year            int
	Season          *int
	Episode         *int
	CatalogID       string
	MediaType       MediaType
	TriagePath      string
	BaseName        string
	Extension       string
	DurationSeconds *int
	Status          ConversionStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time

	root string
}

// ArtifactName returns the file name of an artifact relative to the library
// directory.
func (a *Asset) ArtifactName(kind ArtifactKind) string {
	switch kind {
	case ArtifactOriginal:
		return a.BaseName + ".original" + a.Extension
	case ArtifactConverting:
		return a.BaseName + ".converting.mp4"
	case ArtifactConverted:
		return a.BaseName + ".converted.mp4"
	case ArtifactSmall:
		return a.BaseName + ".small.mp4"
	case ArtifactLarge:
		return a.BaseName + ".large.mp4"
	case ArtifactCover:
		return GroupName(a.Title, a.Year) + ".jpg"
	default:
		return ""
	}
}

// ArtifactPath returns the absolute path of an artifact.
func (a *Asset) ArtifactPath(kind ArtifactKind) string {
	name := a.ArtifactName(kind)
	if name == "" {
		return ""
	}
	return filepath.Join(a.root, name)
}

// SubtitlePath returns the sidecar path for lang and ext ("srt" or "vtt").
func (a *Asset) SubtitlePath(lang, ext string) string {
	name := a.BaseName
	if lang != "" {
		name += "." + lang
	}
	return filepath.Join(a.root, name+"."+strings.TrimPrefix(ext, "."))
}

// OutputKind maps a tier onto the artifact a conversion writes. An empty
// tier writes the canonical converted artifact.
func OutputKind(tier string) ArtifactKind {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(ArtifactSmall):
		return ArtifactSmall
	case string(ArtifactLarge):
		return ArtifactLarge
	default:
		return ArtifactConverted
	}
}

// EffectiveStatus reports the status an asset should be presented with: a
// converting asset whose converted artifact already exists is converted.
func EffectiveStatus(asset *Asset, convertedExists bool) ConversionStatus {
	if asset == nil {
		return ""
	}
	if asset.Status == StatusConverting && convertedExists {
		return StatusConverted
	}
	return asset.Status
}

// GroupName is the stem shared by every asset of one title, used for covers.
func GroupName(title string, year int) string {
	name := sanitizeTitle(title)
	if year > 0 {
		name = fmt.Sprintf("%s (%d)", name, year)
	}
	return name
}

// BaseName returns the library stem for an asset: "{title} ({year})" with an
// optional " S{season}E{episode}" suffix.
func BaseName(title string, year int, season, episode *int) string {
	name := GroupName(title, year)
	var marker string
	if season != nil {
		marker += fmt.Sprintf("S%d", *season)
	}
	if episode != nil {
		marker += fmt.Sprintf("E%d", *episode)
	}
	if marker != "" {
		name += " " + marker
	}
	return name
}

func sanitizeTitle(title string) string {
	title = norm.NFC.String(strings.TrimSpace(title))
	return strings.NewReplacer("/", "-", ":", ",").Replace(title)
}
