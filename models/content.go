package models

import "errors"

// ContentType identifies one of the four supported media catalogs.
// The set is closed: each type maps to exactly one MongoDB collection
// and one vector-index tag. Adding a type means updating this map, the
// embedding-text template and the similarity weight table together.
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeTV    ContentType = "tv_series"
	ContentTypeAnime ContentType = "anime"
	ContentTypeGame  ContentType = "game"
)

// AllContentTypes is the canonical ordering used when assembling the
// combined recommendation list and when running full ingestion passes.
var AllContentTypes = []ContentType{
	ContentTypeMovie,
	ContentTypeTV,
	ContentTypeAnime,
	ContentTypeGame,
}

var ErrUnknownContentType = errors.New("unknown content type")

var typeCollections = map[ContentType]string{
	ContentTypeMovie: "movies",
	ContentTypeTV:    "tv_series",
	ContentTypeAnime: "anime",
	ContentTypeGame:  "games",
}

// Collection returns the MongoDB collection backing this content type.
func (t ContentType) Collection() (string, error) {
	col, ok := typeCollections[t]
	if !ok {
		return "", ErrUnknownContentType
	}
	return col, nil
}

// Valid reports whether t is one of the four supported types.
func (t ContentType) Valid() bool {
	_, ok := typeCollections[t]
	return ok
}

// ContentItem is a catalog record as the engine sees it: an opaque id, a
// few title variants, categorical metadata and a free-text description.
// Which categorical fields are populated depends on the content type
// (movies carry studios, games carry platforms/publishers, and so on).
// Items are read-only from the engine's perspective.
type ContentItem struct {
	ID           string      `bson:"-" json:"id"`
	Type         ContentType `bson:"-" json:"type"`
	Title        string      `bson:"title" json:"title"`
	TitleEnglish string      `bson:"title_english,omitempty" json:"title_english,omitempty"`
	TitleOrig    string      `bson:"title_original,omitempty" json:"title_original,omitempty"`
	Genres       []string    `bson:"genres,omitempty" json:"genres,omitempty"`
	Cast         []string    `bson:"cast,omitempty" json:"cast,omitempty"`
	Studios      []string    `bson:"studios,omitempty" json:"studios,omitempty"`
	Networks     []string    `bson:"networks,omitempty" json:"networks,omitempty"`
	Platforms    []string    `bson:"platforms,omitempty" json:"platforms,omitempty"`
	Publishers   []string    `bson:"publishers,omitempty" json:"publishers,omitempty"`
	Developers   []string    `bson:"developers,omitempty" json:"developers,omitempty"`
	Description  string      `bson:"description,omitempty" json:"description,omitempty"`
}

// Titles returns the non-empty title variants of the item.
func (c *ContentItem) Titles() []string {
	titles := make([]string, 0, 3)
	for _, t := range []string{c.Title, c.TitleEnglish, c.TitleOrig} {
		if t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

// CandidateSource tags how a recommendation candidate was produced.
type CandidateSource string

const (
	SourceSequel     CandidateSource = "sequel"
	SourceSimilarity CandidateSource = "similarity"
)

// Candidate is a single scored recommendation. Candidates exist only for
// the duration of one request and are never persisted.
type Candidate struct {
	ID     string          `json:"id"`
	Type   ContentType     `json:"type"`
	Score  float64         `json:"score"`
	Source CandidateSource `json:"source"`
	Item   *ContentItem    `json:"item,omitempty"`
}

// RecommendationResult holds the per-type buckets plus the flattened
// combined list (movies, then TV, then anime, then games). Within a
// bucket no id appears twice and no id belongs to the user's consumed
// set for that type.
type RecommendationResult struct {
	Movies   []Candidate `json:"movies"`
	TVSeries []Candidate `json:"tv_series"`
	Anime    []Candidate `json:"anime"`
	Games    []Candidate `json:"games"`
	Combined []Candidate `json:"combined"`
}

// Bucket returns the slice for the given type.
func (r *RecommendationResult) Bucket(t ContentType) []Candidate {
	switch t {
	case ContentTypeMovie:
		return r.Movies
	case ContentTypeTV:
		return r.TVSeries
	case ContentTypeAnime:
		return r.Anime
	case ContentTypeGame:
		return r.Games
	}
	return nil
}

// SetBucket stores candidates into the slot for the given type.
func (r *RecommendationResult) SetBucket(t ContentType, recs []Candidate) {
	switch t {
	case ContentTypeMovie:
		r.Movies = recs
	case ContentTypeTV:
		r.TVSeries = recs
	case ContentTypeAnime:
		r.Anime = recs
	case ContentTypeGame:
		r.Games = recs
	}
}

// Flatten rebuilds the combined list from the buckets in canonical order.
func (r *RecommendationResult) Flatten() {
	r.Combined = r.Combined[:0]
	for _, t := range AllContentTypes {
		r.Combined = append(r.Combined, r.Bucket(t)...)
	}
}

// Total returns the number of candidates across all buckets.
func (r *RecommendationResult) Total() int {
	n := 0
	for _, t := range AllContentTypes {
		n += len(r.Bucket(t))
	}
	return n
}

// UserProfile is a read-only snapshot of a user's consumed item ids,
// partitioned by content type. It is fetched fresh per request and never
// cached.
type UserProfile struct {
	UserID  string                   `json:"user_id"`
	Watched map[ContentType][]string `json:"watched"`
}

// IDs returns the consumed ids for one type, nil-safe.
func (p *UserProfile) IDs(t ContentType) []string {
	if p == nil || p.Watched == nil {
		return nil
	}
	return p.Watched[t]
}

// Total counts consumed ids across all types.
func (p *UserProfile) Total() int {
	n := 0
	for _, t := range AllContentTypes {
		n += len(p.IDs(t))
	}
	return n
}

// VectorRecord pairs an item id with its embedding for one upsert into
// the vector index. Records live only for the duration of one ingestion
// batch.
type VectorRecord struct {
	ID     string      `bson:"_id"`
	Type   ContentType `bson:"content_type"`
	Vector []float32   `bson:"vector"`
}

// VectorMatch is one approximate-nearest-neighbor result: the matched
// item id, its similarity score and the type tag stored alongside the
// vector.
type VectorMatch struct {
	ID    string      `json:"id"`
	Score float64     `json:"score"`
	Type  ContentType `json:"type"`
}
