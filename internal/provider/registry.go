package provider

// Registry holds providers in preference order.
type Registry struct {
	providers []Provider
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Select returns the first enabled provider, or nil when every provider is
// disabled. Enablement is re-checked on each call.
func (r *Registry) Select() Provider {
	for _, p := range r.providers {
		if p.Enabled() {
			return p
		}
	}
	return nil
}

// All returns the providers in declaration order.
func (r *Registry) All() []Provider {
	return r.providers
}

// Env variable names for each provider's credential.
const (
	EnvMoonshotKey = "MOONSHOT_API_KEY"
	EnvDeepSeekKey = "DEEPSEEK_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
)

// DefaultRegistry wires the production provider set: Moonshot, then
// DeepSeek, then Gemini.
func DefaultRegistry(geminiModel string) *Registry {
	return NewRegistry(
		NewOpenAICompatible("Moonshot AI", "https://api.moonshot.cn/v1/chat/completions", "moonshot-v1-8k", EnvMoonshotKey),
		NewOpenAICompatible("DeepSeek", "https://api.deepseek.com/chat/completions", "deepseek-chat", EnvDeepSeekKey),
		NewGemini(geminiModel, EnvGeminiKey),
	)
}
