package arxiv

import "encoding/xml"

// feed represents the Atom XML response from the arXiv API.
type feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	StartIndex   int      `xml:"startIndex"`
	ItemsPerPage int      `xml:"itemsPerPage"`
	Entries      []entry  `xml:"entry"`
}

// entry represents a single arXiv paper in the Atom feed.
type entry struct {
	ID              string         `xml:"id"` // "http://arxiv.org/abs/2401.12345v1"
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`   // abstract
	Published       string         `xml:"published"` // "2024-01-15T18:30:00Z"
	Updated         string         `xml:"updated"`
	Authors         []entryAuthor  `xml:"author"`
	Categories      []cat          `xml:"category"`
	Links           []link         `xml:"link"`
	Comment         string         `xml:"comment"` // arxiv:comment, often carries venue hints
	JournalRef      string         `xml:"journal_ref"`
	PrimaryCategory cat            `xml:"primary_category"`
}

// entryAuthor represents a paper author in the Atom feed.
type entryAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

// cat represents an arXiv subject category.
type cat struct {
	Term string `xml:"term,attr"`
}

// link represents a link element in the Atom feed.
type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
