package resilience

import (
	"context"

	"github.com/sondelabs/sonde/pkg/provider/llm"
	"github.com/sondelabs/sonde/pkg/types"
)

// FailoverProvider is an [llm.Provider] that routes each completion to the
// first configured backend whose breaker admits it. The extraction stage
// wraps its primary provider in one of these when extraction.fallbacks is
// set, so a provider outage produces degraded replies instead of abandoned
// turns.
type FailoverProvider struct {
	chain *Failover[llm.Provider]
}

var _ llm.Provider = (*FailoverProvider)(nil)

// NewFailoverProvider creates a provider chain with primary as the preferred
// backend. Fallbacks are registered with [FailoverProvider.Add] in the order
// they should be tried.
func NewFailoverProvider(primaryName string, primary llm.Provider, cfg FailoverConfig) *FailoverProvider {
	return &FailoverProvider{
		chain: NewFailover(primaryName, primary, cfg),
	}
}

// Add appends a fallback backend to the chain.
func (p *FailoverProvider) Add(name string, backend llm.Provider) {
	p.chain.Add(name, backend)
}

// Complete runs the completion against the first healthy backend.
func (p *FailoverProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return DoWith(p.chain, func(b llm.Provider) (*llm.CompletionResponse, error) {
		return b.Complete(ctx, req)
	})
}

// StreamCompletion opens a completion stream on the first healthy backend.
// Only the initial connection is covered by failover; once a stream is
// established, mid-stream errors belong to the caller.
func (p *FailoverProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return DoWith(p.chain, func(b llm.Provider) (<-chan llm.Chunk, error) {
		return b.StreamCompletion(ctx, req)
	})
}

// CountTokens delegates to the primary. Token counting is a local estimate,
// not a backend call, so it neither fails over nor moves breaker state.
func (p *FailoverProvider) CountTokens(messages []types.Message) (int, error) {
	return p.chain.Primary().CountTokens(messages)
}

// Capabilities reports the primary backend's capabilities. Fallbacks may
// differ, but the prompt is sized for the preferred model.
func (p *FailoverProvider) Capabilities() types.ModelCapabilities {
	return p.chain.Primary().Capabilities()
}
