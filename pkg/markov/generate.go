package markov

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

var (
	// ErrDeadEnd is returned by strict generation when the walk reaches a
	// prefix that has no recorded continuation.
	ErrDeadEnd = errors.New("markov: prefix has no continuation")
	// ErrMaxLength is returned by strict generation when the step limit is
	// reached before an End-Of-Chain token is sampled.
	ErrMaxLength = errors.New("markov: step limit reached before end of chain")
)

// ChainToken represents a potential next token in a Markov chain, including its
// unique ID and its frequency of occurrence after a given prefix.
type ChainToken struct {
	Id   int
	Freq int
}

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	maxLength   int
	canEndEarly bool
	strict      bool
	temperature float64
	topK        int
	rng         *rand.Rand
}

// GenerateOption is a function that configures generation parameters.
type GenerateOption func(*generateOptions)

// WithMaxLength sets the maximum number of tokens to generate. The generation
// may stop earlier if an EOC token is chosen and WithEarlyTermination is enabled.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithEarlyTermination specifies whether the generation process can stop before
// reaching maxLength if an End-Of-Chain (EOC) token is generated.
func WithEarlyTermination(canEnd bool) GenerateOption {
	return func(o *generateOptions) { o.canEndEarly = canEnd }
}

// WithStrict makes generation fail instead of truncating. A walk that reaches
// maxLength returns ErrMaxLength and a walk into an unknown prefix returns
// ErrDeadEnd. Strict generation always stops at the first EOC token.
func WithStrict(strict bool) GenerateOption {
	return func(o *generateOptions) { o.strict = strict }
}

// WithTemperature adjusts the randomness of the token selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making less frequent tokens more likely).
// Values < 1.0 decrease randomness (making more frequent tokens even more likely).
// A value of 0 or less results in deterministic selection (always choosing the most frequent token).
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the token selection pool to the top `k` most frequent tokens
// at each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// WithRand sets the random source used for sampling. A nil source, the
// default, uses the math/rand/v2 top-level functions. A *rand.Rand is not
// safe for concurrent use, so callers sharing one must serialize generation.
func WithRand(r *rand.Rand) GenerateOption {
	return func(o *generateOptions) { o.rng = r }
}

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		maxLength:   100,
		canEndEarly: true,
		temperature: 1.0,
		topK:        0,
	}
}

// Generate creates a new Markov chain, builds it into a single string, and returns it.
// It starts from a default initial state of Start-Of-Chain (SOC) tokens.
// Generation can be customized with GenerateOption functions. The model is only
// read, so concurrent calls are safe as long as they don't share a random source.
func (g *Generator) Generate(ctx context.Context, model ModelInfo, opts ...GenerateOption) (string, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.strict {
		options.canEndEarly = true
	}
	return g.generateChain(ctx, model, options)
}

// generateChain contains the main loop for generating a markov chain.
func (g *Generator) generateChain(ctx context.Context, model ModelInfo, options *generateOptions) (string, error) {
	var builder strings.Builder

	tokenCache := map[int]string{
		SOCTokenID: SOCTokenText,
		EOCTokenID: EOCTokenText,
	}

	prefix := make([]int, model.Order)
	generatedCount := 0
	firstWord := true
	lastWord := SOCTokenText

	terminatedEarly := false

	for generatedCount < options.maxLength {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		choices, totalFreq, err := g.GetNextTokens(ctx, model, prefix)
		if err != nil {
			return "", err
		}

		if len(choices) == 0 || totalFreq <= 0 { // Dead end in chain
			g.logger.DebugContext(ctx, "Generation terminated due to dead-end",
				slog.String("model_name", model.Name),
				slog.Int("model_id", model.Id),
				slog.Any("last_prefix", prefix),
				slog.Int("generated_length", generatedCount),
			)
			if options.strict {
				return "", fmt.Errorf("%w: model %q prefix %v", ErrDeadEnd, model.Name, prefix)
			}
			terminatedEarly = true
			builder.WriteString(g.tokenizer.EOC(lastWord))
			break
		}

		nextToken := chooseNextToken(choices, totalFreq, options)

		if nextToken == EOCTokenID {
			builder.WriteString(g.tokenizer.EOC(lastWord))

			if options.canEndEarly {
				terminatedEarly = true
				g.logger.DebugContext(ctx, "Generation terminated by EOC token",
					slog.String("model_name", model.Name),
					slog.Int("model_id", model.Id),
					slog.Int("generated_length", generatedCount),
				)
				break
			}

			lastWord = EOCTokenText
			clear(prefix)
		} else {
			text, err := g.getTokenTextWithCache(ctx, nextToken, tokenCache)
			if err != nil {
				return "", fmt.Errorf("failed to get text for generated token %d: %w", nextToken, err)
			}
			if !firstWord {
				builder.WriteString(g.tokenizer.Separator(lastWord, text))
			} else {
				firstWord = false
			}
			lastWord = text
			builder.WriteString(text)

			prefix = append(prefix[1:], nextToken)
		}
		generatedCount++
	}

	if !terminatedEarly {
		g.logger.DebugContext(ctx, "Generation terminated by reaching maxLength",
			slog.String("model_name", model.Name),
			slog.Int("model_id", model.Id),
			slog.Int("max_length", options.maxLength),
			slog.Int("generated_length", generatedCount),
		)
		if options.strict {
			return "", fmt.Errorf("%w: model %q after %d tokens", ErrMaxLength, model.Name, generatedCount)
		}
		// Ensure that all returned sentences end with an EOC for standardization purposes.
		builder.WriteString(g.tokenizer.EOC(lastWord))
	}

	return builder.String(), nil
}

// getTokenTextWithCache is a helper for generation to minimize DB lookups.
func (g *Generator) getTokenTextWithCache(ctx context.Context, id int, cache map[int]string) (string, error) {
	if text, ok := cache[id]; ok {
		return text, nil
	}
	text, err := g.VocabInt(ctx, id)
	if err != nil {
		return "", err
	}
	cache[id] = text
	return text, nil
}

// chooseNextToken abstracts the token selection logic from the generation loop.
func chooseNextToken(choices []ChainToken, totalFreq int, options *generateOptions) int {
	var nextToken int

	// topK filtering
	if options.topK > 0 && options.topK < len(choices) {
		sort.SliceStable(choices, func(i, j int) bool {
			return choices[i].Freq > choices[j].Freq
		})
		choices = choices[:options.topK]
		totalFreq = 0
		for _, choice := range choices {
			totalFreq += choice.Freq
		}
	}

	switch {
	case options.temperature <= 0: // Deterministic
		maxFreq := -1
		for _, choice := range choices {
			if choice.Freq > maxFreq {
				maxFreq = choice.Freq
				nextToken = choice.Id
			}
		}
	case options.temperature == 1.0: // Standard weighted random
		randChoice := options.intN(totalFreq)
		for _, choice := range choices {
			randChoice -= choice.Freq
			if randChoice < 0 {
				nextToken = choice.Id
				break
			}
		}
	default: // Temperature-based sampling
		logProbabilities := make([]float64, len(choices))
		epsilon := math.Inf(-1)
		for i, choice := range choices {
			lp := math.Log(float64(choice.Freq)) / options.temperature
			logProbabilities[i] = lp
			if lp > epsilon {
				epsilon = lp
			}
		}
		var totalWeight float64
		weights := make([]float64, len(choices))
		for i, lp := range logProbabilities {
			w := math.Exp(lp - epsilon)
			weights[i] = w
			totalWeight += w
		}
		randChoice := options.float64() * totalWeight
		nextToken = choices[len(choices)-1].Id
		for i, choice := range choices {
			randChoice -= weights[i]
			if randChoice < 0 {
				nextToken = choice.Id
				break
			}
		}
	}
	return nextToken
}

func (o *generateOptions) intN(n int) int {
	if o.rng != nil {
		return o.rng.IntN(n)
	}
	return rand.IntN(n)
}

func (o *generateOptions) float64() float64 {
	if o.rng != nil {
		return o.rng.Float64()
	}
	return rand.Float64()
}
