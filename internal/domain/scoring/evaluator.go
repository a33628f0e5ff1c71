// Package scoring decides whether submitted answers are correct and turns a
// set of answers into marks, a percentage and a pass/fail flag.
package scoring

import (
	"sort"
	"strconv"
	"strings"

	"testseries/internal/domain/model"
)

var (
	truthy = map[string]bool{"true": true, "1": true, "t": true, "yes": true}
	falsy  = map[string]bool{"false": true, "0": true, "f": true, "no": true}
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsAnswerCorrect compares one submitted answer to the question's key.
// Comparisons ignore case and surrounding whitespace. A blank answer or a
// question without a key is never correct.
func IsAnswerCorrect(q model.Question, answer model.Answer) bool {
	if isBlank(answer) || isBlank(q.CorrectAnswer) {
		return false
	}

	switch q.Type {
	case model.QuestionMCQ:
		return matchesOption(q, answer.Single(), q.CorrectAnswer.Single())
	case model.QuestionTrueFalse:
		return trueFalseEqual(q, answer.Single(), q.CorrectAnswer.Single())
	case model.QuestionMultiSelect:
		return multiSelectEqual(q, answer, q.CorrectAnswer)
	case model.QuestionInteger:
		got, ok := parseInt(answer.Single())
		if !ok {
			return false
		}
		want, ok := parseInt(q.CorrectAnswer.Single())
		return ok && got == want
	default:
		return normalize(answer.Single()) == normalize(q.CorrectAnswer.Single())
	}
}

func isBlank(a model.Answer) bool {
	for _, v := range a {
		if normalize(v) != "" {
			return false
		}
	}
	return true
}

// resolveOption finds the option whose id or text equals v.
func resolveOption(q model.Question, v string) (model.Option, bool) {
	n := normalize(v)
	for _, opt := range q.Options {
		if normalize(opt.ID) == n || normalize(opt.Text) == n {
			return opt, true
		}
	}
	return model.Option{}, false
}

func matchesOption(q model.Question, submitted, key string) bool {
	s, k := normalize(submitted), normalize(key)
	if s == k {
		return true
	}
	opt, ok := resolveOption(q, submitted)
	if !ok {
		return false
	}
	return normalize(opt.ID) == k || normalize(opt.Text) == k
}

func trueFalseEqual(q model.Question, submitted, key string) bool {
	s, k := submitted, key
	// Option ids such as "a"/"b" resolve to their text before mapping.
	if opt, ok := resolveOption(q, s); ok {
		s = opt.Text
	}
	if opt, ok := resolveOption(q, k); ok {
		k = opt.Text
	}
	sb, sok := toBool(s)
	kb, kok := toBool(k)
	if sok && kok {
		return sb == kb
	}
	return matchesOption(q, submitted, key)
}

func toBool(v string) (bool, bool) {
	n := normalize(v)
	if truthy[n] {
		return true, true
	}
	if falsy[n] {
		return false, true
	}
	return false, false
}

// multiSelectEqual requires the same values after normalization, ignoring order.
func multiSelectEqual(q model.Question, submitted, key model.Answer) bool {
	got := canonicalSet(q, SplitSelection(q, submitted))
	want := canonicalSet(q, SplitSelection(q, key))
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// SplitSelection accepts ["a","b"] as well as a single "a,b" string. A
// single value naming an option as a whole is never split, so option text
// containing commas stays intact.
func SplitSelection(q model.Question, a model.Answer) []string {
	if len(a) != 1 || !strings.Contains(a[0], ",") {
		return a
	}
	if _, ok := resolveOption(q, a[0]); ok {
		return a
	}
	return strings.Split(a[0], ",")
}

func canonicalSet(q model.Question, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if normalize(v) == "" {
			continue
		}
		if opt, ok := resolveOption(q, v); ok {
			out = append(out, normalize(opt.ID))
			continue
		}
		out = append(out, normalize(v))
	}
	sort.Strings(out)
	return out
}

// parseInt reads an optional sign followed by leading digits and ignores the
// rest, the way a lenient form parser would. No digits, or a value outside
// int64, means no number.
func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
