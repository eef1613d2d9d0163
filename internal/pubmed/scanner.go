package pubmed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RejectReason classifies why a citation was excluded from the output.
type RejectReason string

// Reasons a citation is rejected.
const (
	RejectMissingPMID RejectReason = "missing_pmid"
	RejectRetracted   RejectReason = "retracted"
	RejectNoAbstract  RejectReason = "no_abstract"
)

// RefTypes that mark a citation as retracted.
const (
	refTypeRetractionOf = "Retraction of"
	refTypeRetractionIn = "Retraction in"
)

// RejectReporter receives a notification for every rejected citation.
// The pmid argument is the raw PMID text, which may be empty.
type RejectReporter interface {
	OnReject(pmid string, reason RejectReason)
}

// RejectFunc is a function adapter for RejectReporter.
type RejectFunc func(pmid string, reason RejectReason)

// OnReject implements RejectReporter.
func (f RejectFunc) OnReject(pmid string, reason RejectReason) {
	f(pmid, reason)
}

// ScanStats counts accepted and rejected citations for one pass.
type ScanStats struct {
	Accepted    int `json:"accepted"`
	MissingPMID int `json:"missing_pmid"`
	Retracted   int `json:"retracted"`
	NoAbstract  int `json:"no_abstract"`
}

// Rejected returns the total number of rejected citations.
func (s ScanStats) Rejected() int {
	return s.MissingPMID + s.Retracted + s.NoAbstract
}

// Scanner streams Articles out of a PubMed baseline XML document.
// It makes a single pass over the input and is not restartable.
//
// Usage follows bufio.Scanner: call Scan until it returns false, reading
// the current record with Article, then check Err.
type Scanner struct {
	dec      *xml.Decoder
	article  Article
	stats    ScanStats
	reporter RejectReporter
	err      error
}

// NewScanner creates a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{dec: xml.NewDecoder(r)}
}

// SetRejectReporter sets the reporter called for each rejected citation.
func (s *Scanner) SetRejectReporter(reporter RejectReporter) {
	s.reporter = reporter
}

// Scan advances to the next accepted citation. It returns false at end of
// input or on a malformed document; distinguish the two with Err.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	for {
		tok, err := s.dec.Token()
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("reading document: %w", err)
			return false
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "MedlineCitation" {
			continue
		}

		var raw citationXML
		if err := s.dec.DecodeElement(&raw, &se); err != nil {
			s.err = fmt.Errorf("decoding citation: %w", err)
			return false
		}

		article, reason, ok := normalize(raw)
		if !ok {
			s.reject(raw.PMID.Value, reason)
			continue
		}

		s.article = article
		s.stats.Accepted++
		return true
	}
}

// Article returns the citation accepted by the last call to Scan.
func (s *Scanner) Article() Article {
	return s.article
}

// Err returns the first error encountered while scanning, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Stats returns the counters accumulated so far.
func (s *Scanner) Stats() ScanStats {
	return s.stats
}

func (s *Scanner) reject(pmid string, reason RejectReason) {
	switch reason {
	case RejectMissingPMID:
		s.stats.MissingPMID++
	case RejectRetracted:
		s.stats.Retracted++
	case RejectNoAbstract:
		s.stats.NoAbstract++
	}
	if s.reporter != nil {
		s.reporter.OnReject(pmid, reason)
	}
}

// normalize converts a decoded citation element into an Article, applying
// the three rejection rules. Optional substructure is resolved here, once;
// the raw element is not consulted again after this returns.
func normalize(raw citationXML) (Article, RejectReason, bool) {
	pmid, err := strconv.ParseUint(strings.TrimSpace(raw.PMID.Value), 10, 64)
	if err != nil || pmid == 0 {
		return Article{}, RejectMissingPMID, false
	}

	for _, cc := range raw.CommentsCorrections {
		if cc.RefType == refTypeRetractionOf || cc.RefType == refTypeRetractionIn {
			return Article{}, RejectRetracted, false
		}
	}

	var fragments []string
	for _, frag := range raw.Article.Abstract.Texts {
		if text := strings.TrimSpace(frag.Value); text != "" {
			fragments = append(fragments, text)
		}
	}
	if len(fragments) == 0 {
		return Article{}, RejectNoAbstract, false
	}

	authors := make([]Author, 0, len(raw.Article.AuthorList.Authors))
	for _, a := range raw.Article.AuthorList.Authors {
		authors = append(authors, Author{
			LastName: a.LastName,
			ForeName: a.ForeName,
		})
	}

	var keywords []string
	for _, list := range raw.KeywordLists {
		for _, kw := range list.Keywords {
			if text := strings.TrimSpace(kw.Value); text != "" {
				keywords = append(keywords, text)
			}
		}
	}

	var doi string
	for _, loc := range raw.Article.ELocationIDs {
		if loc.EIdType == "doi" {
			doi = strings.TrimSpace(loc.Value)
			break
		}
	}

	return Article{
		PMID:     pmid,
		Version:  raw.PMID.Version,
		Title:    strings.TrimSpace(raw.Article.Title),
		Abstract: strings.Join(fragments, " "),
		Journal: Journal{
			Title:  raw.Article.Journal.Title,
			Volume: raw.Article.Journal.Issue.Volume,
			PubDate: PubDate{
				Year:  raw.Article.Journal.Issue.PubDate.Year,
				Month: raw.Article.Journal.Issue.PubDate.Month,
				Day:   raw.Article.Journal.Issue.PubDate.Day,
			},
		},
		Authors:         authors,
		AuthorsComplete: raw.Article.AuthorList.CompleteYN != "N",
		Keywords:        keywords,
		DOI:             doi,
	}, "", true
}

// XML mapping for the subset of MedlineCitation the pipeline consumes.

type citationXML struct {
	PMID                pmidXML       `xml:"PMID"`
	Article             articleXML    `xml:"Article"`
	CommentsCorrections []commentXML  `xml:"CommentsCorrectionsList>CommentsCorrections"`
	KeywordLists        []keywordList `xml:"KeywordList"`
}

type pmidXML struct {
	Value   string `xml:",chardata"`
	Version string `xml:"Version,attr"`
}

type articleXML struct {
	Journal      journalXML     `xml:"Journal"`
	Title        string         `xml:"ArticleTitle"`
	Abstract     abstractXML    `xml:"Abstract"`
	AuthorList   authorListXML  `xml:"AuthorList"`
	ELocationIDs []eLocationXML `xml:"ELocationID"`
}

type journalXML struct {
	Title string          `xml:"Title"`
	Issue journalIssueXML `xml:"JournalIssue"`
}

type journalIssueXML struct {
	Volume  string     `xml:"Volume"`
	PubDate pubDateXML `xml:"PubDate"`
}

type pubDateXML struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type abstractXML struct {
	Texts []abstractTextXML `xml:"AbstractText"`
}

type abstractTextXML struct {
	Value string `xml:",chardata"`
}

type authorListXML struct {
	CompleteYN string      `xml:"CompleteYN,attr"`
	Authors    []authorXML `xml:"Author"`
}

type authorXML struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type keywordList struct {
	Keywords []keywordXML `xml:"Keyword"`
}

type keywordXML struct {
	Value string `xml:",chardata"`
}

type commentXML struct {
	RefType string `xml:"RefType,attr"`
}

type eLocationXML struct {
	EIdType string `xml:"EIdType,attr"`
	Value   string `xml:",chardata"`
}
