package providers

// GetProviderModels returns the well-known models for a provider, used by
// the API's provider listing. Not exhaustive; configuration can name any
// model the provider accepts.
func GetProviderModels(provider Provider) []string {
	switch provider {
	case ProviderOpenAI:
		return []string{
			"gpt-4o-mini",
			"gpt-4o",
			"gpt-4-turbo",
			"gpt-3.5-turbo",
		}
	case ProviderGemini:
		return []string{
			"gemini-1.5-flash",
			"gemini-1.5-pro",
			"gemini-2.5-flash",
		}
	case ProviderAnthropic:
		return []string{
			"claude-3-5-sonnet-latest",
			"claude-3-opus-20240229",
			"claude-3-haiku-20240307",
		}
	case ProviderCohere:
		return []string{
			"command",
			"command-r",
			"command-r-plus",
		}
	case ProviderOllama:
		return []string{
			"llama3",
			"mistral",
		}
	default:
		return nil
	}
}

// KnownProviders lists every provider this build can construct a client
// for.
func KnownProviders() []Provider {
	return []Provider{
		ProviderOpenAI,
		ProviderGemini,
		ProviderAnthropic,
		ProviderCohere,
		ProviderOllama,
	}
}
