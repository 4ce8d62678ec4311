package vocab

import (
	"strings"
	"testing"
)

func TestFallbackVocabulary(t *testing.T) {
	v := Fallback("Operating Systems")
	if v.CourseName != "Operating Systems" {
		t.Errorf("Expected topic as course name, got %q", v.CourseName)
	}
	if len(v.Keywords) == 0 {
		t.Error("Expected generic keywords")
	}

	empty := Fallback("  ")
	if empty.CourseName != "Academic Lecture" {
		t.Errorf("Expected generic course name for empty topic, got %q", empty.CourseName)
	}
}

func TestBuildInitialPrompt(t *testing.T) {
	v := Vocabulary{
		CourseName: "Linear Algebra",
		Keywords:   []string{"matrix", "eigenvalue", "determinant"},
	}

	prompt := BuildInitialPrompt(v)

	if !strings.Contains(prompt, "This is a Linear Algebra lecture.") {
		t.Errorf("Prompt missing course phrase: %q", prompt)
	}
	if !strings.Contains(prompt, "matrix, eigenvalue, determinant") {
		t.Errorf("Prompt missing keywords: %q", prompt)
	}
	if !strings.Contains(prompt, "equations, diagrams, and code") {
		t.Errorf("Prompt missing closing phrase: %q", prompt)
	}
}

func TestBuildLeakPatternsCatchPromptEchoes(t *testing.T) {
	v := Vocabulary{CourseName: "Linear Algebra", Keywords: []string{"matrix"}}
	patterns := BuildLeakPatterns(v)

	leaks := []string{
		"This is a Linear Algebra lecture.",
		"this is a linear algebra lecture",
		"Technical terms include matrix and vector",
		"The professor may reference equations",
		"Today's lecture is on Linear Algebra",
		"We are discussing Linear Algebra today",
	}

	for _, text := range leaks {
		matched := false
		for _, p := range patterns {
			if p.MatchString(text) {
				matched = true
				break
			}
		}
		if !matched {
			t.Errorf("Expected a pattern to match %q", text)
		}
	}
}

func TestBuildLeakPatternsDoNotCatchRealSpeech(t *testing.T) {
	v := Vocabulary{CourseName: "Linear Algebra", Keywords: []string{"matrix"}}
	patterns := BuildLeakPatterns(v)

	real := []string{
		"a matrix is a rectangular array of numbers",
		"linear algebra gives us tools for solving systems",
		"in the last lecture we proved this theorem",
	}

	for _, text := range real {
		for _, p := range patterns {
			if p.MatchString(text) {
				t.Errorf("Pattern %q should not match real speech %q", p.String(), text)
			}
		}
	}
}

func TestBuildLeakPatternsEscapeRegexMetacharacters(t *testing.T) {
	v := Vocabulary{CourseName: "C++ (Advanced)", Keywords: []string{"templates"}}
	patterns := BuildLeakPatterns(v)

	if len(patterns) == 0 {
		t.Fatal("Expected patterns even with metacharacters in the course name")
	}

	matched := false
	for _, p := range patterns {
		if p.MatchString("This is a C++ (Advanced) lecture") {
			matched = true
			break
		}
	}
	if !matched {
		t.Error("Expected quoted course name to match literally")
	}
}

func TestParseVocabResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			"plain json",
			`{"course_name": "Networking", "keywords": ["tcp", "udp"]}`,
			false,
		},
		{
			"fenced json",
			"```json\n{\"course_name\": \"Networking\", \"keywords\": [\"tcp\"]}\n```",
			false,
		},
		{
			"fenced without language tag",
			"```\n{\"course_name\": \"Networking\", \"keywords\": [\"tcp\"]}\n```",
			false,
		},
		{"not json", "I cannot help with that", true},
		{"missing keywords", `{"course_name": "Networking", "keywords": []}`, true},
		{"missing course name", `{"keywords": ["tcp"]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parseVocabResponse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if parsed.CourseName != "Networking" {
				t.Errorf("Unexpected course name: %q", parsed.CourseName)
			}
		})
	}
}
