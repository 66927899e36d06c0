package model

import (
	"strings"
	"time"
)

// CommentSeparator joins collected comments into a single cell
const CommentSeparator = " | "

// Lookup is the result of a best-effort single element read
type Lookup struct {
	Text  string `json:"text,omitempty"`
	Found bool   `json:"found"`
}

// Found wraps a value read from the page
func Found(text string) Lookup {
	return Lookup{Text: text, Found: true}
}

// NotFound is the result of a lookup whose element was unavailable
var NotFound = Lookup{}

// String returns the looked-up text, or "" when absent
func (l Lookup) String() string {
	if !l.Found {
		return ""
	}
	return l.Text
}

// RecordStatus describes how an item ended up in the output
type RecordStatus string

const (
	StatusOK      RecordStatus = "ok"      // Item visited and extracted
	StatusFailed  RecordStatus = "failed"  // Navigation to the item failed
	StatusSkipped RecordStatus = "skipped" // Item not visited (e.g., robots.txt)
)

// ItemRecord is one output row for a content item
type ItemRecord struct {
	URL       string       `json:"url"`
	Likes     Lookup       `json:"likes"`
	Shares    Lookup       `json:"shares"`
	Comments  []string     `json:"comments"`
	Complete  bool         `json:"complete"`         // Comment cap reached
	Passes    int          `json:"passes,omitempty"` // Extraction passes run
	Status    RecordStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	ScrapedAt time.Time    `json:"scraped_at"`
}

// JoinedComments returns the comments as a single separator-joined string
func (r ItemRecord) JoinedComments() string {
	return strings.Join(r.Comments, CommentSeparator)
}

// FailedRecord builds the record of an item that could not be processed
func FailedRecord(url string, status RecordStatus, err error) ItemRecord {
	rec := ItemRecord{
		URL:       url,
		Comments:  []string{},
		Status:    status,
		ScrapedAt: time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}
