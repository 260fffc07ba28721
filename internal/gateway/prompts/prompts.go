// Package prompts holds the embedded prompt templates for classification
// and the non-tool conversational handlers. Templates use {token}
// placeholders rendered with a plain replacer so literal braces elsewhere
// in the text survive untouched.
package prompts

import (
	_ "embed"
	"strings"
)

//go:embed template/classifier_prompt.txt
var classifierPrompt string

//go:embed template/book_prompt.txt
var bookPrompt string

//go:embed template/personal_prompt.txt
var personalPrompt string

// RenderClassifier builds the intent-classification instruction with the
// rolling history transcript and the current question inlined.
func RenderClassifier(history, question string) string {
	return strings.NewReplacer(
		"{history}", history,
		"{question}", question,
	).Replace(classifierPrompt)
}

// RenderBook builds the retrieval-augmented book conversation step. The
// input combines the user query and the concatenated retrieved passages.
func RenderBook(history, input string) string {
	return strings.NewReplacer(
		"{history}", history,
		"{input}", input,
	).Replace(bookPrompt)
}

// RenderPersonal builds the canned personal-info conversation step. The
// template itself instructs the engine how to answer each sub-case, so no
// separate sub-topic classifier exists.
func RenderPersonal(history, input string) string {
	return strings.NewReplacer(
		"{history}", history,
		"{input}", input,
	).Replace(personalPrompt)
}
