package services

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"media-recommender/internal/logger"
	"media-recommender/models"
)

const (
	// How many same-series candidates to pull from the repository per item.
	sequelLookupLimit = 5
	// At most this many sequel candidates survive per consumed item.
	sequelPerItemCap = 3
	// Hard cap across all consumed items of one user/type pair.
	sequelTotalCap = 10
)

// SeriesIdentity is what the title parser infers about an item's
// franchise: the series name used for repository lookups and, when one
// appears anywhere in the title, an informational entry number.
type SeriesIdentity struct {
	Name      string
	Number    int
	HasNumber bool
}

type titleMatcher struct {
	name string
	re   *regexp.Regexp
}

// seriesMatchers is the ordered parsing policy; the first match wins.
// Roman numerals are matched uppercase only, otherwise ordinary words
// built from I/V/X/M (like "Mix") would register as sequels.
var seriesMatchers = []titleMatcher{
	{"trailing-numeral", regexp.MustCompile(`^(.+?)[\s:\-]+([0-9]+|[IVXLCDM]+)$`)},
	{"season-part-chapter", regexp.MustCompile(`(?i)^(.+?)[\s:\-]+(?:season|part|chapter)\s*[0-9]+$`)},
	{"franchise-marker", regexp.MustCompile(`(?i)^(.+?)\s+(?:the|returns|origins|begins|rises|forever|reborn)$`)},
}

var anyNumber = regexp.MustCompile(`[0-9]+`)

// ExtractSeriesIdentity derives a series identity from a title, or nil
// when none can be inferred. Titles longer than 4 characters that match
// no pattern fall back to the whole title, a deliberately loose policy
// that lets the substring lookup find same-franchise entries with
// subtitle-style naming.
func ExtractSeriesIdentity(title string) *SeriesIdentity {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	number, hasNumber := findSeriesNumber(title)

	for _, m := range seriesMatchers {
		groups := m.re.FindStringSubmatch(title)
		if groups == nil {
			continue
		}
		name := strings.TrimSpace(strings.TrimRight(groups[1], " :-"))
		if name == "" {
			continue
		}
		return &SeriesIdentity{Name: name, Number: number, HasNumber: hasNumber}
	}

	if len(title) > 4 {
		return &SeriesIdentity{Name: title, Number: number, HasNumber: hasNumber}
	}
	return nil
}

// findSeriesNumber records the first numeral appearing anywhere in the
// title. Informational only, never used for scoring.
func findSeriesNumber(title string) (int, bool) {
	raw := anyNumber.FindString(title)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SequelDetector finds unconsumed entries of the franchises a user has
// already consumed, ranked by metadata similarity to the source item.
type SequelDetector struct {
	store ContentStore
}

func NewSequelDetector(store ContentStore) *SequelDetector {
	return &SequelDetector{store: store}
}

// Detect runs sequel detection over consumed items in profile order.
// Processing stops once the total cap is reached; a failure on one item
// is logged and the remaining items still run.
func (d *SequelDetector) Detect(ctx context.Context, items []*models.ContentItem, consumed map[string]struct{}) []models.Candidate {
	recs := make([]models.Candidate, 0, sequelTotalCap)
	seen := make(map[string]struct{})

	for _, item := range items {
		if len(recs) >= sequelTotalCap {
			break
		}

		found, err := d.detectForItem(ctx, item, consumed)
		if err != nil {
			logger.Warn("Sequel detection failed for item", "id", item.ID, "type", string(item.Type), "error", err)
			continue
		}

		for _, c := range found {
			if len(recs) >= sequelTotalCap {
				break
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			recs = append(recs, c)
		}
	}
	return recs
}

func (d *SequelDetector) detectForItem(ctx context.Context, item *models.ContentItem, consumed map[string]struct{}) ([]models.Candidate, error) {
	titles := item.Titles()
	if len(titles) == 0 {
		return nil, nil
	}

	identity := ExtractSeriesIdentity(titles[0])
	if identity == nil {
		return nil, nil
	}

	matches, err := d.store.FindByTitleSubstring(ctx, identity.Name, item.Type, item.ID, sequelLookupLimit)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(matches))
	for _, match := range matches {
		if _, watched := consumed[match.ID]; watched {
			continue
		}
		candidates = append(candidates, models.Candidate{
			ID:     match.ID,
			Type:   item.Type,
			Score:  SimilarityScore(item, match),
			Source: models.SourceSequel,
			Item:   match,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > sequelPerItemCap {
		candidates = candidates[:sequelPerItemCap]
	}
	return candidates, nil
}
