package providers

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// Known GenerationInfo keys across langchaingo backends. OpenAI reports
// CamelCase keys, Anthropic and Gemini report snake_case variants.
var (
	inputTokenKeys  = []string{"PromptTokens", "InputTokens", "input_tokens", "prompt_tokens"}
	outputTokenKeys = []string{"CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens"}
)

// usageFromGenerationInfo extracts token counts from a provider response.
// Returns nil when the provider reported nothing usable.
func usageFromGenerationInfo(info map[string]any) *TokenUsage {
	if len(info) == 0 {
		return nil
	}

	in, okIn := intFromInfo(info, inputTokenKeys)
	out, okOut := intFromInfo(info, outputTokenKeys)
	if !okIn && !okOut {
		return nil
	}

	return &TokenUsage{
		InputTokens:  in,
		OutputTokens: out,
	}
}

func intFromInfo(info map[string]any, keys []string) (int, bool) {
	for _, key := range keys {
		v, ok := info[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n, true
		case int32:
			return int(n), true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		}
	}
	return 0, false
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

// estimateUsage approximates token counts with a local tokenizer for
// providers that report no usage. Counts are tagged as estimated so the
// trace sink can distinguish them from provider-reported numbers.
func estimateUsage(prompt, instructions, output string) *TokenUsage {
	codecOnce.Do(func() {
		var err error
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to initialize local tokenizer")
		}
	})
	if codec == nil {
		return nil
	}

	in := countTokens(prompt) + countTokens(instructions)
	out := countTokens(output)
	if in == 0 && out == 0 {
		return nil
	}

	return &TokenUsage{
		InputTokens:  in,
		OutputTokens: out,
		Estimated:    true,
	}
}

func countTokens(s string) int {
	if s == "" {
		return 0
	}
	_, toks, err := codec.Encode(s)
	if err != nil {
		return 0
	}
	return len(toks)
}
