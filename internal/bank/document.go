// Package bank loads question banks and test definitions from JSON or YAML files.
package bank

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from a file name; anything but .yaml/.yml is JSON.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

type Document struct {
	Categories  []CategoryDoc `json:"categories" yaml:"categories"`
	Questions   []QuestionDoc `json:"questions" yaml:"questions"`
	Tests       []TestDoc     `json:"tests" yaml:"tests"`
	TestConfigs []QuotaDoc    `json:"test_category_configs" yaml:"test_category_configs"`
}

type CategoryDoc struct {
	Name string `json:"name" yaml:"name"`
}

type QuestionDoc struct {
	Category      string `json:"question_category" yaml:"question_category"`
	Text          string `json:"question_text" yaml:"question_text"`
	OptionA       string `json:"option_a" yaml:"option_a"`
	OptionB       string `json:"option_b" yaml:"option_b"`
	OptionC       string `json:"option_c" yaml:"option_c"`
	OptionD       string `json:"option_d" yaml:"option_d"`
	CorrectOption string `json:"correct_option" yaml:"correct_option"`
	Marks         int    `json:"marks" yaml:"marks"`
	Explanation   string `json:"answer_explanation" yaml:"answer_explanation"`
}

// TestDoc fields left zero take the import defaults: 15 minutes, 10 questions,
// 10 total marks, 5 to pass.
type TestDoc struct {
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	Duration     int    `json:"duration" yaml:"duration"`
	MaxQuestions int    `json:"max_questions" yaml:"max_questions"`
	TotalMarks   int    `json:"total_marks" yaml:"total_marks"`
	PassingMarks *int   `json:"passing_marks" yaml:"passing_marks"`
	Status       string `json:"status" yaml:"status"`
}

type QuotaDoc struct {
	Test              string `json:"test" yaml:"test"`
	Category          string `json:"category" yaml:"category"`
	NumberOfQuestions int    `json:"number_of_questions" yaml:"number_of_questions"`
}

// Parse decodes a document. Unknown fields are rejected so typos surface early.
func Parse(r io.Reader, f Format) (Document, error) {
	var doc Document
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return Document{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("parse json: %w", err)
		}
	}
	return doc, nil
}
