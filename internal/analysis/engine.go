package analysis

import (
	"context"
	"fmt"

	"bolonyay/internal/llm"
)

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"bn": "Bengali",
	"ta": "Tamil",
	"mr": "Marathi",
}

func languageName(tag string) string {
	if name, ok := languageNames[tag]; ok {
		return name
	}
	return "English"
}

// Engine drives both model invocation modes over the same client:
// per-turn legal replies and whole-conversation filing analysis.
type Engine struct {
	client llm.Client
}

func NewEngine(client llm.Client) *Engine {
	return &Engine{client: client}
}

// Reply produces the assistant's answer to the latest utterance. The
// bounded conversation context is prepended when present; an empty
// context means the utterance is sent alone.
func (e *Engine) Reply(ctx context.Context, contextBlock, utterance, language string) (string, error) {
	system := fmt.Sprintf(
		"You are a legal expert assistant helping citizens of India understand their legal situation. "+
			"Answer briefly and in plain language. Respond in %s.", languageName(language))

	prompt := utterance
	if contextBlock != "" {
		prompt = contextBlock + "\n\n" + utterance
	}

	resp, err := e.client.Generate(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("legal response failed: %w", err)
	}
	return resp.Content, nil
}

// AnalyzeForFiling asks the model to classify the whole conversation into
// the marker structure the parser understands.
func (e *Engine) AnalyzeForFiling(ctx context.Context, transcript, language string) (string, error) {
	system := fmt.Sprintf(
		"You are a legal expert preparing a case filing from a conversation transcript. "+
			"Reply with exactly three sections:\n"+
			"CASE TYPE: <one short line naming the case category>\n"+
			"CASE DETAILS:\n<a short factual summary of the situation>\n"+
			"QUESTIONS:\n<a bulleted list of the questions the filer must answer to complete the filing>\n"+
			"Write the details and questions in %s.", languageName(language))

	resp, err := e.client.Generate(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: transcript},
	})
	if err != nil {
		return "", fmt.Errorf("filing analysis failed: %w", err)
	}
	return resp.Content, nil
}
