package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAnswerUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Answer
	}{
		{`"B"`, Answer{"B"}},
		{`42`, Answer{"42"}},
		{`true`, Answer{"true"}},
		{`["a","b"]`, Answer{"a", "b"}},
		{`[1, "x", false]`, Answer{"1", "x", "false"}},
		{`null`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			var got Answer
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestAnswerUnmarshalRejectsObjects(t *testing.T) {
	var a Answer
	if err := json.Unmarshal([]byte(`{"x":1}`), &a); err == nil {
		t.Fatal("expected error for object answer")
	}
}

func TestAnswersMapDecoding(t *testing.T) {
	var answers map[string]Answer
	body := `{"q1":"A","q2":["x","y"],"q3":7}`
	if err := json.Unmarshal([]byte(body), &answers); err != nil {
		t.Fatal(err)
	}
	if answers["q1"].Single() != "A" || len(answers["q2"]) != 2 || answers["q3"].Single() != "7" {
		t.Errorf("unexpected decode: %#v", answers)
	}
}

func TestWithoutAnswerKeys(t *testing.T) {
	test := &Test{Questions: []Question{{ID: "q1", CorrectAnswer: Answer{"A"}, Explanation: "because"}}}
	public := test.WithoutAnswerKeys()
	if public.Questions[0].CorrectAnswer != nil || public.Questions[0].Explanation != "" {
		t.Error("answer key leaked")
	}
	if test.Questions[0].CorrectAnswer.Single() != "A" {
		t.Error("original test was modified")
	}
}

func TestEffectivePassingScore(t *testing.T) {
	zero, seventy := 0, 70
	cases := []struct {
		score *int
		want  int
	}{{nil, 60}, {&zero, 60}, {&seventy, 70}}
	for _, c := range cases {
		test := &Test{PassingScore: c.score}
		if got := test.EffectivePassingScore(); got != c.want {
			t.Errorf("EffectivePassingScore = %d, want %d", got, c.want)
		}
	}
}
