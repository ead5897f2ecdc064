package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"digital.vasic.promptforge/internal/config"
	apperrors "digital.vasic.promptforge/internal/errors"
)

// ProviderStatus is the health snapshot reported for one backend.
type ProviderStatus struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Default   bool   `json:"default"`
	Error     string `json:"error,omitempty"`
}

// Facade routes generation requests to the configured backends. A request may
// name a provider; unknown or unavailable hints fall back to the default.
type Facade struct {
	providers map[config.Provider]Provider
	models    map[config.Provider]string
	def       config.Provider
	log       *logrus.Logger

	mu        sync.RWMutex
	available map[config.Provider]bool
	lastErr   map[config.Provider]string
}

// NewFacade registers every enabled backend from configuration.
func NewFacade(cfg config.LLMConfig, log *logrus.Logger) *Facade {
	f := &Facade{
		providers: map[config.Provider]Provider{},
		models:    map[config.Provider]string{},
		def:       cfg.DefaultProvider,
		log:       log,
		available: map[config.Provider]bool{},
		lastErr:   map[config.Provider]string{},
	}

	if cfg.Ollama.Enabled {
		f.register(config.ProviderOllama, NewOllamaProvider(cfg.Ollama), cfg.Ollama.Model)
	}
	if cfg.OpenAI.Enabled {
		f.register(config.ProviderOpenAI, NewOpenAIProvider(cfg.OpenAI), cfg.OpenAI.Model)
	}
	if cfg.Anthropic.Enabled {
		f.register(config.ProviderAnthropic, NewAnthropicProvider(cfg.Anthropic), cfg.Anthropic.Model)
	}
	if cfg.Bedrock.Enabled {
		f.register(config.ProviderBedrock, NewBedrockProvider(cfg.Bedrock), cfg.Bedrock.Model)
	}

	return f
}

func (f *Facade) register(name config.Provider, p Provider, model string) {
	f.providers[name] = p
	f.models[name] = model
	// Optimistic until the first probe runs.
	f.available[name] = true
}

// Probe health-checks every registered backend and records availability.
// Called at startup and periodically by the health handler.
func (f *Facade) Probe(ctx context.Context) {
	for name, p := range f.providers {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.HealthCheck(probeCtx)
		cancel()

		f.mu.Lock()
		f.available[name] = err == nil
		if err != nil {
			f.lastErr[name] = err.Error()
		} else {
			delete(f.lastErr, name)
		}
		f.mu.Unlock()

		if err != nil {
			f.log.WithError(err).WithField("provider", string(name)).Warn("LLM provider unavailable")
		} else {
			f.log.WithField("provider", string(name)).Debug("LLM provider healthy")
		}
	}
}

// DefaultProvider returns the configured default backend name.
func (f *Facade) DefaultProvider() config.Provider {
	return f.def
}

// Has reports whether a backend is registered.
func (f *Facade) Has(name config.Provider) bool {
	_, ok := f.providers[name]
	return ok
}

// resolve picks the backend for a hint. An empty or unregistered hint falls
// back to the default; a missing default is a configuration error.
func (f *Facade) resolve(hint config.Provider) (Provider, error) {
	if hint != "" {
		if p, ok := f.providers[hint]; ok && f.isAvailable(hint) {
			return p, nil
		}
		f.log.WithFields(logrus.Fields{
			"requested": string(hint),
			"fallback":  string(f.def),
		}).Warn("Requested LLM provider unavailable, falling back to default")
	}

	p, ok := f.providers[f.def]
	if !ok {
		return nil, apperrors.NewProvider(string(f.def),
			fmt.Sprintf("default provider %q is not enabled", f.def))
	}
	return p, nil
}

func (f *Facade) isAvailable(name config.Provider) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.available[name]
}

// Generate sends the prompt to the hinted backend with default fallback.
func (f *Facade) Generate(ctx context.Context, prompt string, hint config.Provider) (*GenerationResult, error) {
	return f.GenerateRequest(ctx, &GenerationRequest{Prompt: prompt}, hint)
}

// GenerateRequest is Generate with full request control.
func (f *Facade) GenerateRequest(ctx context.Context, req *GenerationRequest, hint config.Provider) (*GenerationResult, error) {
	p, err := f.resolve(hint)
	if err != nil {
		return nil, err
	}

	result, err := p.Generate(ctx, req)
	if err != nil {
		f.mu.Lock()
		f.available[config.Provider(p.Name())] = false
		f.lastErr[config.Provider(p.Name())] = err.Error()
		f.mu.Unlock()
		return nil, err
	}

	f.log.WithFields(logrus.Fields{
		"provider":    result.Provider,
		"model":       result.Model,
		"tokens_used": result.TokensUsed,
		"duration_ms": result.DurationMS,
	}).Debug("Generation completed")

	return result, nil
}

// Status reports every registered backend with its last known availability.
func (f *Facade) Status() []ProviderStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	order := []config.Provider{
		config.ProviderOllama,
		config.ProviderOpenAI,
		config.ProviderAnthropic,
		config.ProviderBedrock,
	}

	statuses := make([]ProviderStatus, 0, len(f.providers))
	for _, name := range order {
		if _, ok := f.providers[name]; !ok {
			continue
		}
		statuses = append(statuses, ProviderStatus{
			Name:      string(name),
			Model:     f.models[name],
			Available: f.available[name],
			Default:   name == f.def,
			Error:     f.lastErr[name],
		})
	}
	return statuses
}

// Capabilities returns the capability sheet for one backend.
func (f *Facade) Capabilities(name config.Provider) (*Capabilities, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, apperrors.NewProvider(string(name), "provider is not enabled")
	}
	return p.Capabilities(), nil
}

// HealthCheck probes one backend on demand.
func (f *Facade) HealthCheck(ctx context.Context, name config.Provider) error {
	p, ok := f.providers[name]
	if !ok {
		return apperrors.NewProvider(string(name), "provider is not enabled")
	}
	err := p.HealthCheck(ctx)

	f.mu.Lock()
	f.available[name] = err == nil
	if err != nil {
		f.lastErr[name] = err.Error()
	} else {
		delete(f.lastErr, name)
	}
	f.mu.Unlock()

	return err
}
