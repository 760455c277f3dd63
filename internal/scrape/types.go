// Package scrape defines the core types shared across pipeline stages.
package scrape

import "time"

// Stage identifiers used for checkpoints, metrics and logging.
const (
	StageSearch = "search"
	StagePlaces = "places"
	StageEnrich = "enrich"
)

// WorkItem is one unit of input to a stage: a search query, a place URL or
// a website URL. Items form an ordered sequence with a stable index for the
// duration of a stage invocation.
type WorkItem struct {
	Index int
	Value string
}

// Checkpoint records the last contiguously completed item index for a stage.
type Checkpoint struct {
	Stage              string    `json:"stage"`
	LastCompletedIndex int       `json:"last_completed_index"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PlaceRecord is one structured business listing produced by the places stage.
// Website may be empty; enrichment passes such records through untouched.
type PlaceRecord struct {
	Name        string
	Category    string
	Address     string
	Rating      string
	ReviewCount string
	Website     string
	Phone       string
}

// PlaceHeader is the CSV column order for PlaceRecord artifacts.
var PlaceHeader = []string{"name", "category", "address", "rating", "review_count", "website", "phone"}

// CSVRow renders the record in PlaceHeader order.
func (r PlaceRecord) CSVRow() []string {
	return []string{r.Name, r.Category, r.Address, r.Rating, r.ReviewCount, r.Website, r.Phone}
}

// EnrichedRecord is a PlaceRecord plus the contact and social fields scraped
// from the listing's own website. Every scraped field is optional.
type EnrichedRecord struct {
	Place     PlaceRecord
	Email     string
	Phone     string
	WhatsApp  string
	Facebook  string
	Instagram string
	LinkedIn  string
	Twitter   string
	TikTok    string
	Snapchat  string
}

// EnrichedHeader is the CSV column order for EnrichedRecord artifacts.
var EnrichedHeader = append(append([]string{}, PlaceHeader...),
	"scraped_email", "scraped_phone", "scraped_whatsapp", "scraped_facebook",
	"scraped_instagram", "scraped_linkedin", "scraped_twitter", "scraped_tiktok",
	"scraped_snapchat",
)

// CSVRow renders the record in EnrichedHeader order.
func (r EnrichedRecord) CSVRow() []string {
	return append(r.Place.CSVRow(),
		r.Email, r.Phone, r.WhatsApp, r.Facebook,
		r.Instagram, r.LinkedIn, r.Twitter, r.TikTok,
		r.Snapchat,
	)
}

// ContactKind classifies a CandidateContact.
type ContactKind string

// Candidate contact kinds.
const (
	ContactEmail  ContactKind = "email"
	ContactPhone  ContactKind = "phone"
	ContactSocial ContactKind = "social"
)

// CandidateContact is a transient extraction value considered for selection.
// Candidates are never persisted individually.
type CandidateContact struct {
	Kind       ContactKind
	Value      string
	SourcePage string
}

// Summary reports per-stage item outcomes.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Total returns the number of items accounted for by the summary.
func (s Summary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}
