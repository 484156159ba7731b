package translate

import "context"

// Translator normalizes caller speech to English for classification and
// reasoning, and renders replies back in the caller's language. The
// orchestration layer only ever sees English.
type Translator interface {
	// Detect returns an ISO 639-1 language code for the text.
	Detect(ctx context.Context, text string) (string, error)
	ToEnglish(ctx context.Context, text, lang string) (string, error)
	FromEnglish(ctx context.Context, text, lang string) (string, error)
}

// Passthrough treats everything as English. The default until a real
// translation backend is wired in.
type Passthrough struct{}

func (Passthrough) Detect(ctx context.Context, text string) (string, error) {
	return "en", nil
}

func (Passthrough) ToEnglish(ctx context.Context, text, lang string) (string, error) {
	return text, nil
}

func (Passthrough) FromEnglish(ctx context.Context, text, lang string) (string, error) {
	return text, nil
}
