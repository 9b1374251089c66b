package pipeline

import (
	"regexp"
	"strings"
)

// DetectResult is the outcome of scoring an inbound email. Reason lists the
// signals that contributed, in scoring order.
type DetectResult struct {
	IsOrder bool
	Score   float64
	Reason  string
}

const detectThreshold = 0.45

var (
	detectKeywords = []string{"purchase order", "p.o.", "po#", "po ", "order", "quote", "rfq", "qty", "quantity", "please supply"}
	poNumber       = regexp.MustCompile(`(?i)\bp\.?o\.?\s*(?:#|no\.?|number)?\s*[:-]?\s*\d{3,}`)
)

// DetectPurchaseOrder scores an email on keywords, numeric density, PO
// numbers and attachments. A score of 0.45 or more is an order.
func DetectPurchaseOrder(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	body := strings.ToLower(text) + "\n" + strings.ToLower(html)

	var score float64
	var signals []string
	add := func(signal string, weight float64) {
		score += weight
		signals = append(signals, signal)
	}

	var kwScore float64
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			kwScore += 0.2
		}
		if strings.Contains(body, kw) {
			kwScore += 0.1
		}
	}
	if kwScore > 0 {
		add("keywords", kwScore)
	}

	switch n := countNumbers(strings.ToLower(text)); {
	case n >= 2:
		add("numbers", 0.4)
	case n == 1:
		add("number", 0.2)
	}

	if poNumber.MatchString(subject) || poNumber.MatchString(body) || anyMatch(poNumber, attachmentNames) {
		add("po_number", 0.3)
	}

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			add("pdf", 0.25)
			break
		}
	}

	if strings.Contains(body, "<table") {
		add("table", 0.25)
	}

	score = min(score, 1)
	res := DetectResult{IsOrder: score >= detectThreshold, Score: score, Reason: "none"}
	if len(signals) > 0 {
		res.Reason = strings.Join(signals, ",")
	}
	return res
}

func anyMatch(re *regexp.Regexp, values []string) bool {
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// countNumbers counts runs of digits.
func countNumbers(text string) int {
	count := 0
	inRun := false
	for i := 0; i < len(text); i++ {
		digit := text[i] >= '0' && text[i] <= '9'
		if digit && !inRun {
			count++
		}
		inRun = digit
	}
	return count
}
