package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pinscraper/pkg/config"
	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/ledger"
	"pinscraper/pkg/logger"
	"pinscraper/pkg/records"
)

const detailsJS = `() => {
	const text = (sel) => {
		const el = document.querySelector(sel);
		if (!el) return null;
		const t = el.textContent.trim();
		return t === "" ? null : t;
	};
	const tags = Array.from(document.querySelectorAll('div[data-test-id="vase-tag"] a, div[data-test-id="pin-tags"] a'))
		.map(a => a.textContent.trim()).filter(t => t !== "");
	const img = document.querySelector('div[data-test-id="pin-closeup-image"] img') || document.querySelector('div[data-test-id="closeup-body"] img');
	const videos = Array.from(document.querySelectorAll('video')).map(v => v.src || (v.querySelector('source') || {}).src || "").filter(s => s !== "");
	return JSON.stringify({
		title: text('h1'),
		description: text('div[data-test-id="truncated-description"] div') || text('div[data-test-id="pin-description"]'),
		poster_name: text('div[data-test-id="creator-profile-name"]') || text('div[data-test-id="official-user-attribution"] a'),
		follower_count: text('div[data-test-id="user-follower-count"]'),
		tags: tags.length ? tags : null,
		story: document.querySelector('div[data-test-id="story-pin-closeup"]') !== null,
		videos: videos,
		image: img ? img.src : null,
	});
}`

// Field is one scraped value that may be missing from the page
type Field struct {
	Name      string
	Value     string
	Available bool
}

// Result returns the value, or *errors.ItemFieldUnavailable when missing
func (f Field) Result() (string, error) {
	if !f.Available {
		return "", &pserrors.ItemFieldUnavailable{Field: f.Name}
	}
	return f.Value, nil
}

// RawDetails holds the fields read from one pin page
type RawDetails struct {
	Title         Field
	Description   Field
	PosterName    Field
	FollowerCount Field
	// Tags is nil when the page has no tag section
	Tags        []string
	MediaKind   records.MediaKind
	MediaSource Field
}

// DetailProvider reads pin pages
type DetailProvider struct {
	mgr    *Manager
	site   config.SiteConfig
	logger logger.Logger
}

// NewDetailProvider creates a provider on top of mgr
func NewDetailProvider(mgr *Manager, site config.SiteConfig, log logger.Logger) *DetailProvider {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DetailProvider{mgr: mgr, site: site, logger: log}
}

// Details opens ref and reads its fields. Missing fields are reported per
// field; only navigation or script failures return an error.
func (d *DetailProvider) Details(ctx context.Context, ref ledger.ItemReference) (RawDetails, error) {
	page, err := d.mgr.open(ctx, ref.Href)
	if err != nil {
		return RawDetails{}, err
	}
	defer page.Close()

	raw, err := evalString(ctx, page, detailsJS)
	if err != nil {
		return RawDetails{}, err
	}
	return ParseDetails(raw, d.site.AvatarMarker)
}

type pageFields struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	PosterName    *string  `json:"poster_name"`
	FollowerCount *string  `json:"follower_count"`
	Tags          []string `json:"tags"`
	Story         bool     `json:"story"`
	Videos        []string `json:"videos"`
	Image         *string  `json:"image"`
}

// ParseDetails decodes the page script output
func ParseDetails(raw, avatarMarker string) (RawDetails, error) {
	var pf pageFields
	if err := json.Unmarshal([]byte(raw), &pf); err != nil {
		return RawDetails{}, fmt.Errorf("browser: decode details: %w", err)
	}

	image := ""
	if pf.Image != nil && !IsAvatar(*pf.Image, avatarMarker) {
		image = *pf.Image
	}
	kind, src := ClassifyMedia(pf.Story, pf.Videos, image)

	return RawDetails{
		Title:         field("title", pf.Title),
		Description:   field("description", pf.Description),
		PosterName:    field("poster_name", pf.PosterName),
		FollowerCount: field("follower_count", pf.FollowerCount),
		Tags:          pf.Tags,
		MediaKind:     kind,
		MediaSource:   Field{Name: "media_source", Value: src, Available: src != ""},
	}, nil
}

func field(name string, v *string) Field {
	if v == nil {
		return Field{Name: name}
	}
	return Field{Name: name, Value: *v, Available: true}
}

// ClassifyMedia decides the media kind of a pin and its download source
func ClassifyMedia(story bool, videos []string, image string) (records.MediaKind, string) {
	switch {
	case story && len(videos) > 1:
		return records.MediaStoryMultiVideo, videos[0]
	case story && len(videos) == 1:
		return records.MediaStoryVideo, videos[0]
	case story:
		return records.MediaStoryImage, image
	case len(videos) > 0:
		return records.MediaVideo, videos[0]
	default:
		return records.MediaImage, image
	}
}

// IsAvatar reports whether src is a profile picture rather than pin media
func IsAvatar(src, marker string) bool {
	return marker != "" && strings.Contains(src, marker)
}
