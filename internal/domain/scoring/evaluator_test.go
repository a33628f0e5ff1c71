package scoring

import (
	"testing"

	"testseries/internal/domain/model"
)

func mcq(key string) model.Question {
	return model.Question{
		ID:   "q1",
		Type: model.QuestionMCQ,
		Options: []model.Option{
			{ID: "a", Text: "Paris"},
			{ID: "b", Text: "Berlin"},
			{ID: "c", Text: "Madrid"},
		},
		CorrectAnswer: model.Answer{key},
		Marks:         1,
	}
}

func TestIsAnswerCorrect_MCQ(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		answer model.Answer
		want   bool
	}{
		{name: "option id", key: "a", answer: model.Answer{"a"}, want: true},
		{name: "option id uppercase padded", key: "a", answer: model.Answer{"  A "}, want: true},
		{name: "option text resolves to id key", key: "a", answer: model.Answer{"paris"}, want: true},
		{name: "id resolves to text key", key: "Paris", answer: model.Answer{"a"}, want: true},
		{name: "wrong option", key: "a", answer: model.Answer{"b"}, want: false},
		{name: "wrong text", key: "a", answer: model.Answer{"Berlin"}, want: false},
		{name: "unknown value", key: "a", answer: model.Answer{"rome"}, want: false},
		{name: "missing answer", key: "a", answer: nil, want: false},
		{name: "blank answer", key: "a", answer: model.Answer{"   "}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAnswerCorrect(mcq(tc.key), tc.answer); got != tc.want {
				t.Errorf("IsAnswerCorrect() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAnswerCorrect_TrueFalse(t *testing.T) {
	plain := model.Question{Type: model.QuestionTrueFalse, CorrectAnswer: model.Answer{"true"}}
	withOptions := model.Question{
		Type:          model.QuestionTrueFalse,
		Options:       []model.Option{{ID: "opt1", Text: "True"}, {ID: "opt2", Text: "False"}},
		CorrectAnswer: model.Answer{"opt1"},
	}

	tests := []struct {
		name   string
		q      model.Question
		answer string
		want   bool
	}{
		{"true", plain, "true", true},
		{"one", plain, "1", true},
		{"t", plain, "T", true},
		{"yes", plain, " Yes ", true},
		{"false", plain, "false", false},
		{"no", plain, "no", false},
		{"zero", plain, "0", false},
		{"out of vocabulary", plain, "maybe", false},
		{"option id", withOptions, "opt1", true},
		{"option text", withOptions, "true", true},
		{"vocab against option key", withOptions, "yes", true},
		{"wrong option", withOptions, "opt2", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAnswerCorrect(tc.q, model.Answer{tc.answer}); got != tc.want {
				t.Errorf("IsAnswerCorrect(%q) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestIsAnswerCorrect_MultiSelect(t *testing.T) {
	q := model.Question{
		Type:          model.QuestionMultiSelect,
		Options:       []model.Option{{ID: "a", Text: "Red"}, {ID: "b", Text: "Green"}, {ID: "c", Text: "Blue"}},
		CorrectAnswer: model.Answer{"a", "c"},
	}
	tests := []struct {
		name   string
		answer model.Answer
		want   bool
	}{
		{"exact order", model.Answer{"a", "c"}, true},
		{"reversed", model.Answer{"c", "a"}, true},
		{"by text", model.Answer{"blue", "RED"}, true},
		{"comma string", model.Answer{"c, a"}, true},
		{"missing one", model.Answer{"a"}, false},
		{"extra one", model.Answer{"a", "b", "c"}, false},
		{"empty", model.Answer{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAnswerCorrect(q, tc.answer); got != tc.want {
				t.Errorf("IsAnswerCorrect(%v) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}
}

func TestIsAnswerCorrect_MultiSelectOptionTextWithComma(t *testing.T) {
	q := model.Question{
		Type:          model.QuestionMultiSelect,
		Options:       []model.Option{{ID: "a", Text: "Paris, France"}, {ID: "b", Text: "Rome"}, {ID: "c", Text: "Oslo"}},
		CorrectAnswer: model.Answer{"a"},
	}
	tests := []struct {
		name   string
		answer model.Answer
		want   bool
	}{
		{"option text with comma", model.Answer{"Paris, France"}, true},
		{"option id", model.Answer{"a"}, true},
		{"comma string of ids", model.Answer{"a,b"}, false},
		{"unrelated text", model.Answer{"Paris, Texas"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAnswerCorrect(q, tc.answer); got != tc.want {
				t.Errorf("IsAnswerCorrect(%v) = %v, want %v", tc.answer, got, tc.want)
			}
		})
	}

	byText := q
	byText.CorrectAnswer = model.Answer{"Paris, France"}
	if !IsAnswerCorrect(byText, model.Answer{"a"}) {
		t.Error("key naming comma text should match its option id")
	}
}

func TestIsAnswerCorrect_Integer(t *testing.T) {
	q := model.Question{Type: model.QuestionInteger, CorrectAnswer: model.Answer{"42"}}
	tests := []struct {
		answer string
		want   bool
	}{
		{"42", true},
		{" 42 ", true},
		{"+42", true},
		{"42.9", true}, // leading digits only
		{"42abc", true},
		{"043", false},
		{"-42", false},
		{"abc", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsAnswerCorrect(q, model.Answer{tc.answer}); got != tc.want {
			t.Errorf("IsAnswerCorrect(%q) = %v, want %v", tc.answer, got, tc.want)
		}
	}

	wrapped := model.Question{Type: model.QuestionInteger, CorrectAnswer: model.Answer{"18446744073709551658"}}
	if IsAnswerCorrect(wrapped, model.Answer{"42"}) {
		t.Error("key beyond int64 must not wrap around to 42")
	}

	badKey := model.Question{Type: model.QuestionInteger, CorrectAnswer: model.Answer{"n/a"}}
	if IsAnswerCorrect(badKey, model.Answer{"0"}) {
		t.Error("unparseable key must never match")
	}
}

func TestIsAnswerCorrect_ShortAnswerCaseAndSpaceInsensitive(t *testing.T) {
	q := model.Question{Type: model.QuestionShortAnswer, CorrectAnswer: model.Answer{"Photosynthesis"}}
	for _, a := range []string{"photosynthesis", "  PHOTOSYNTHESIS\t", "PhotoSynthesis"} {
		if !IsAnswerCorrect(q, model.Answer{a}) {
			t.Errorf("IsAnswerCorrect(%q) = false, want true", a)
		}
	}
	if IsAnswerCorrect(q, model.Answer{"photo synthesis"}) {
		t.Error("inner whitespace must still matter")
	}
}

func TestIsAnswerCorrect_MissingKey(t *testing.T) {
	for _, typ := range []string{model.QuestionMCQ, model.QuestionTrueFalse, model.QuestionMultiSelect, model.QuestionInteger, model.QuestionShortAnswer} {
		q := model.Question{Type: typ}
		if IsAnswerCorrect(q, model.Answer{"a"}) {
			t.Errorf("type %s without key scored correct", typ)
		}
	}
}
