package llm

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/llm-monitor/backend/pkg/utils"
)

const fallbackSummaryRunes = 500

// parseQuestions keeps numbered or bulleted lines that end in a question
// mark, with the list marker removed.
func parseQuestions(text string, count int) []string {
	questions := make([]string, 0, count)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := []rune(line)[0]
		if !unicode.IsDigit(first) && first != '-' && first != '*' && first != '•' {
			continue
		}
		q := stripListMarker(line)
		if q == "" || !strings.HasSuffix(q, "?") {
			continue
		}
		questions = append(questions, q)
		if len(questions) == count {
			break
		}
	}
	return questions
}

func stripListMarker(line string) string {
	line = strings.TrimLeftFunc(line, unicode.IsDigit)
	line = strings.TrimLeft(line, ".)-*• \t")
	return strings.TrimSpace(line)
}

type rawAnalysis struct {
	AccuracyScore             *float64 `json:"accuracy_score"`
	MisrepresentationDetected *bool    `json:"misrepresentation_detected"`
	AnalysisSummary           string   `json:"analysis_summary"`
	SpecificIssues            []string `json:"specific_issues"`
	Confidence                *float64 `json:"confidence"`
}

// parseAccuracyAnalysis reads the outermost JSON object in text. Missing
// numeric fields default to 0.5; when no object can be decoded the result is
// marked degraded and the flag is inferred from the wording of the reply.
func parseAccuracyAnalysis(text string) *AccuracyAnalysis {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		var raw rawAnalysis
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err == nil {
			a := &AccuracyAnalysis{
				AccuracyScore:  0.5,
				Confidence:     0.5,
				Summary:        raw.AnalysisSummary,
				SpecificIssues: raw.SpecificIssues,
				RawAnalysis:    text,
			}
			if raw.AccuracyScore != nil {
				a.AccuracyScore = clamp(*raw.AccuracyScore)
			}
			if raw.Confidence != nil {
				a.Confidence = clamp(*raw.Confidence)
			}
			if raw.MisrepresentationDetected != nil {
				a.MisrepresentationDetected = *raw.MisrepresentationDetected
			}
			if a.SpecificIssues == nil {
				a.SpecificIssues = []string{}
			}
			return a
		}
	}

	lower := strings.ToLower(text)
	return &AccuracyAnalysis{
		AccuracyScore:             0.5,
		Confidence:                0.5,
		MisrepresentationDetected: strings.Contains(lower, "misrepresentation") || strings.Contains(lower, "inaccurate"),
		Summary:                   utils.Truncate(text, fallbackSummaryRunes),
		SpecificIssues:            []string{},
		RawAnalysis:               text,
		Degraded:                  true,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
