package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 2_000_000, CompletionTokens: 1_000_000}, ResolvePricing("gpt-3.5-turbo"))
	assert.InDelta(t, 1.0, in, 1e-9)
	assert.InDelta(t, 1.5, out, 1e-9)
	assert.InDelta(t, 2.5, total, 1e-9)
}

func TestComputeCostUnknownModelOrUsage(t *testing.T) {
	_, _, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1000}, ResolvePricing("some-local-model"))
	assert.Zero(t, total)

	_, _, total = ComputeCost(nil, ResolvePricing("gemini-2.5-flash"))
	assert.Zero(t, total)
}
