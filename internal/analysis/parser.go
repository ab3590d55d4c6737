package analysis

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrMissingCaseType = errors.New("analysis did not contain a case type")
	ErrNoQuestions     = errors.New("analysis did not contain any filing questions")
)

// Draft is the structured outcome of filing analysis before persistence.
// UserResponses always has the same length as FilingQuestions.
type Draft struct {
	CaseType        string
	CaseDetails     string
	FilingQuestions []string
	UserResponses   []string
}

// Answered reports whether every response slot is non-blank.
func (d *Draft) Answered() bool {
	if len(d.UserResponses) == 0 {
		return false
	}
	for _, r := range d.UserResponses {
		if strings.TrimSpace(r) == "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers cannot mutate machine-owned state.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := &Draft{CaseType: d.CaseType, CaseDetails: d.CaseDetails}
	out.FilingQuestions = append([]string(nil), d.FilingQuestions...)
	out.UserResponses = append([]string(nil), d.UserResponses...)
	return out
}

const minQuestionLength = 10

var bulletRe = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s*`)

type section int

const (
	sectionNone section = iota
	sectionDetails
	sectionQuestions
)

// Parser extracts a Draft from free-text filing analysis. The upstream
// text is unstructured model output in any supported language, so this is
// a tolerant marker/keyword heuristic with an explicit failure path.
type Parser struct {
	keywords []string
}

func NewParser(interrogatives Interrogatives) *Parser {
	if interrogatives == nil {
		interrogatives = DefaultInterrogatives()
	}
	words := interrogatives.All()
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		lowered = append(lowered, strings.ToLower(w))
	}
	return &Parser{keywords: lowered}
}

// Parse scans the analysis line by line. Either both a case type and at
// least one question come out, or the parse fails: proceeding with a
// garbled case type and asking the user to answer anyway is worse than an
// explicit error.
func (p *Parser) Parse(text string) (*Draft, error) {
	draft := &Draft{}
	var details []string
	current := sectionNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if rest, ok := markerRest(line, "CASE TYPE:"); ok {
			draft.CaseType = strings.TrimSpace(rest)
			current = sectionNone
			continue
		}
		if _, ok := markerRest(line, "CASE DETAILS:"); ok {
			current = sectionDetails
			continue
		}
		if _, ok := markerRest(line, "QUESTIONS:"); ok {
			current = sectionQuestions
			continue
		}

		switch current {
		case sectionDetails:
			details = append(details, trimDecoration(line))
		case sectionQuestions:
			if q, ok := p.candidateQuestion(line); ok {
				draft.FilingQuestions = append(draft.FilingQuestions, q)
			}
		}
	}

	draft.CaseDetails = strings.Join(details, " ")

	if draft.CaseType == "" {
		return nil, ErrMissingCaseType
	}
	if len(draft.FilingQuestions) == 0 {
		return nil, ErrNoQuestions
	}
	draft.UserResponses = make([]string, len(draft.FilingQuestions))
	return draft, nil
}

// markerRest matches a section marker case-insensitively, tolerating
// markdown decoration around it, and returns the text after the marker.
func markerRest(line, marker string) (string, bool) {
	cleaned := trimDecoration(line)
	if len(cleaned) < len(marker) {
		return "", false
	}
	if !strings.EqualFold(cleaned[:len(marker)], marker) {
		return "", false
	}
	return strings.Trim(cleaned[len(marker):], " *"), true
}

func trimDecoration(line string) string {
	return strings.Trim(line, " \t*#")
}

func (p *Parser) candidateQuestion(line string) (string, bool) {
	stripped := line
	bulleted := false
	if loc := bulletRe.FindStringIndex(line); loc != nil {
		stripped = line[loc[1]:]
		bulleted = true
	}
	stripped = strings.TrimSpace(stripped)

	if !bulleted && !p.containsInterrogative(stripped) {
		return "", false
	}
	if len([]rune(stripped)) <= minQuestionLength {
		return "", false
	}
	return stripped, true
}

func (p *Parser) containsInterrogative(line string) bool {
	lowered := strings.ToLower(line)
	for _, kw := range p.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
