package types

import (
	"time"

	"github.com/shanehull/annfetch/internal/page"
)

// DateToken is a calendar date recognised in free text.
type DateToken struct {
	Date    time.Time // midnight UTC
	Matched string
	Layout  string
	Offset  int
}

// DocumentRecord is one announcement found on the page during a scan.
type DocumentRecord struct {
	Container  page.Element
	Title      string
	Date       DateToken
	Candidates []Candidate
}

// Key normalises a record for de-duplication.
func (r DocumentRecord) Key() string {
	return RecordKey(r.Date.Date, r.Title)
}

type Candidate struct {
	Element page.Element
	Score   int
	Context string
	Order   int
}

type DownloadOutcome struct {
	Path    string
	Size    int64
	Elapsed time.Duration
}

// RecordRef is the reporting metadata an extracted document carries back to
// the record it came from.
type RecordRef struct {
	Title string
	Date  DateToken
}

type ExtractedDocument struct {
	Path    string
	Source  string // the completed download it came from
	Record  RecordRef
	Summary *Summary
}

// Summary is the optional machine-written digest of one document.
type Summary struct {
	Headline        string
	Bullets         []string
	KeyDates        []string
	RequiredActions []string
}

type Failure struct {
	Record RecordRef
	Reason string
}

type Report struct {
	RunID              string
	WindowStart        time.Time
	WindowEnd          time.Time
	StartedAt          time.Time
	FinishedAt         time.Time
	RecordsFound       int
	RecordsInWindow    int
	NoTrigger          int
	Selected           int
	Skipped            int
	TriggersInvoked    int
	DownloadsCompleted int
	Documents          []ExtractedDocument
	Failures           []Failure
}
