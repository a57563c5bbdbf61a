package web

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/llm-monitor/backend/pkg/logger"
)

const (
	maxFactsPerCategory   = 10
	maxSentencesPerTopic  = 5
	minFactSentenceLength = 20
)

// KeyInformation is a heuristic digest of a page, used for display next to a
// snapshot. The monitoring pipeline does not consume it.
type KeyInformation struct {
	Leadership    []string `json:"leadership"`
	People        []string `json:"people"`
	Policies      []string `json:"policies"`
	Services      []string `json:"services"`
	ContactInfo   []string `json:"contact_info"`
	Announcements []string `json:"announcements"`
	Dates         []string `json:"dates"`
}

var (
	leadershipPatterns = []*regexp.Regexp{
		regexp.MustCompile(`president\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
		regexp.MustCompile(`director\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
		regexp.MustCompile(`secretary\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
		regexp.MustCompile(`administrator\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
		regexp.MustCompile(`chief\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`),
	}
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)

	policyKeywords       = []string{"policy", "regulation", "law", "act", "bill", "statute", "rule"}
	serviceKeywords      = []string{"service", "program", "benefit", "assistance", "support", "help"}
	announcementKeywords = []string{"announce", "press release", "statement", "news"}
)

// ExtractKeyInformation pulls leadership names, dates, contact details and
// topical sentences out of scraped page text.
func ExtractKeyInformation(content string) KeyInformation {
	info := KeyInformation{}

	for _, p := range leadershipPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			info.Leadership = append(info.Leadership, m[1])
		}
	}
	for _, p := range datePatterns {
		info.Dates = append(info.Dates, p.FindAllString(content, -1)...)
	}
	info.ContactInfo = append(info.ContactInfo, emailPattern.FindAllString(content, -1)...)
	info.ContactInfo = append(info.ContactInfo, phonePattern.FindAllString(content, -1)...)

	sentences, people := analyze(content)
	info.People = people
	info.Policies = sentencesMentioning(sentences, policyKeywords)
	info.Services = sentencesMentioning(sentences, serviceKeywords)
	info.Announcements = sentencesMentioning(sentences, announcementKeywords)

	info.Leadership = limitUnique(info.Leadership)
	info.People = limitUnique(info.People)
	info.Policies = limitUnique(info.Policies)
	info.Services = limitUnique(info.Services)
	info.ContactInfo = limitUnique(info.ContactInfo)
	info.Announcements = limitUnique(info.Announcements)
	info.Dates = limitUnique(info.Dates)

	return info
}

// analyze segments content into sentences and collects PERSON entities.
// When the NLP pass fails it falls back to splitting on periods.
func analyze(content string) ([]string, []string) {
	doc, err := prose.NewDocument(content)
	if err != nil {
		logger.Debug("Sentence segmentation failed, splitting on periods", zap.Error(err))
		return strings.Split(content, "."), nil
	}

	sentences := make([]string, 0, len(doc.Sentences()))
	for _, s := range doc.Sentences() {
		sentences = append(sentences, s.Text)
	}

	var people []string
	for _, ent := range doc.Entities() {
		if ent.Label == "PERSON" {
			people = append(people, ent.Text)
		}
	}
	return sentences, people
}

func sentencesMentioning(sentences []string, keywords []string) []string {
	var out []string
	for _, keyword := range keywords {
		count := 0
		for _, s := range sentences {
			s = strings.TrimSpace(s)
			if len(s) <= minFactSentenceLength || !strings.Contains(strings.ToLower(s), keyword) {
				continue
			}
			out = append(out, s)
			count++
			if count >= maxSentencesPerTopic {
				break
			}
		}
	}
	return out
}

func limitUnique(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
		if len(out) >= maxFactsPerCategory {
			break
		}
	}
	return out
}
