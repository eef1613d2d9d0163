// Package pubmed defines the citation record model and the streaming
// extractor for PubMed baseline XML documents.
package pubmed

// Article is a normalized, filtered citation record. It is constructed once
// by the Scanner and never mutated afterwards.
type Article struct {
	// Identity
	PMID    uint64 `json:"pmid"`
	Version string `json:"pmid_version,omitempty"` // PMID Version attribute, "" if absent

	// Content
	Title    string `json:"title"`
	Abstract string `json:"abstract"`

	// Metadata
	Journal         Journal  `json:"journal"`
	Authors         []Author `json:"authors"`
	AuthorsComplete bool     `json:"authors_complete"` // AuthorList CompleteYN, true when unspecified
	Keywords        []string `json:"keywords"`
	DOI             string   `json:"doi,omitempty"` // ELocationID with EIdType="doi"
}

// Journal holds the journal metadata for an article. Absent fields default
// to the empty string.
type Journal struct {
	Title   string  `json:"title"`
	Volume  string  `json:"volume"`
	PubDate PubDate `json:"pub_date"`
}

// PubDate is a publication date. PubMed dates are not uniformly numeric
// (months appear as "Jan" or "1"), so all parts are kept as strings.
type PubDate struct {
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
}

// Author represents one entry of an article's author list.
type Author struct {
	LastName string `json:"last_name"`
	ForeName string `json:"fore_name"`
}
