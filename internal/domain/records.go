package domain

// RootParent is the parentno sentinel carried by question (top-level) posts.
const RootParent = "root"

// AnswerPostType is the posttypeid value that marks a post as an answer.
const AnswerPostType = "2"

// RawPost is one row of the forum archive as read from the source file.
// Optional attributes are empty strings when absent; the Has* flags record
// presence for the attributes a post is required to carry.
type RawPost struct {
	ID         string
	PostTypeID string
	ParentID   string
	Score      string
	Title      string
	Body       string
	Tags       string

	HasID         bool
	HasPostTypeID bool
	HasScore      bool
	HasBody       bool
}

// IsAnswer reports whether the post is an answer to another post.
func (p RawPost) IsAnswer() bool {
	return p.PostTypeID == AnswerPostType
}

// Formula is a formula placeholder captured from a title or body field.
type Formula struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// PostRecord is the text-index representation of a post.
type PostRecord struct {
	DocNo      string   `json:"docno"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Tags       string   `json:"tags"`
	FormulaIDs []string `json:"mathnos"`
	ParentNo   string   `json:"parentno"`
	Votes      string   `json:"votes"`
}

// FormulaRecord is the formula-index representation of a single formula.
// PostNo references the PostRecord that owns the formula.
type FormulaRecord struct {
	DocNo    string `json:"docno"`
	Text     string `json:"text"`
	PostNo   string `json:"postno"`
	ParentNo string `json:"parentno"`
}

// TopicRecord is a normalized query topic.
type TopicRecord struct {
	QID   string `json:"qid"`
	Query string `json:"query"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Tags  string `json:"tags"`
}

// JudgmentEntry is one graded relevance assessment.
type JudgmentEntry struct {
	QID   string `json:"qid"`
	DocNo string `json:"docno"`
	Grade int    `json:"grade"`
}

// ScoredHit is one hit of a ranked list produced against a single corpus.
// Rank is 0-based. Meta carries stored fields returned by the engine.
type ScoredHit struct {
	QID   string            `json:"qid"`
	DocNo string            `json:"docno"`
	Score float64           `json:"score"`
	Rank  int               `json:"rank"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// FusedHit is a hit of a combined ranked list. Rank is 0-based.
type FusedHit struct {
	QID   string  `json:"qid"`
	DocNo string  `json:"docno"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Index field names shared by the builders, the engine schemas and queries.
const (
	FieldDocNo    = "docno"
	FieldTitle    = "title"
	FieldText     = "text"
	FieldTags     = "tags"
	FieldVotes    = "votes"
	FieldParentNo = "parentno"
	FieldMathNos  = "mathnos"
	FieldPostNo   = "postno"
)
