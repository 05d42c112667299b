// Package extract applies a loaded pattern set to captured script output.
//
// Absence of a match is a normal outcome, never a failure: a rule that does
// not match simply leaves its field names out of the result. Rules are
// evaluated independently, so overlapping rules may each contribute fields to
// the same run.
package extract

import (
	"math"
	"regexp"
	"strconv"

	"github.com/kplau1128/tools-n-utilies/internal/model"
)

var decimalRx = regexp.MustCompile(`^\d+\.\d+$`)

// Extract derives the extracted fields for one captured output text. For
// every result rule the leftmost match wins; for every error rule any match
// sets ErrorDetected and records the rule name, in declaration order.
func Extract(text string, set *model.PatternSet) model.ExtractedFields {
	fields := model.ExtractedFields{
		Matches: make(map[string]string),
	}

	for _, rule := range set.ResultRules() {
		captured, ok := rule.FirstMatch(text)
		if !ok {
			continue
		}
		for name, value := range captured {
			fields.Matches[name] = normalize(value)
		}
	}

	seen := make(map[string]struct{})
	for _, rule := range set.ErrorRules() {
		if !rule.Matches(text) {
			continue
		}
		fields.ErrorDetected = true
		if _, ok := seen[rule.Name]; ok {
			continue
		}
		seen[rule.Name] = struct{}{}
		fields.ErrorNames = append(fields.ErrorNames, rule.Name)
	}

	return fields
}

// normalize rounds plain decimal captures (e.g. a throughput of
// 1234.56789012) to two places; everything else passes through untouched.
func normalize(value string) string {
	if !decimalRx.MatchString(value) {
		return value
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
