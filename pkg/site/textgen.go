package site

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/Darlingtonia/pkg/markov"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Chain produces one complete utterance per call.
type Chain interface {
	Utterance(ctx context.Context) (string, error)
}

type markovChain struct {
	gen   *markov.Generator
	model markov.ModelInfo
	opts  []markov.GenerateOption
}

// NewMarkovChain adapts a trained model to the Chain interface. Every
// utterance is generated with opts.
func NewMarkovChain(gen *markov.Generator, model markov.ModelInfo, opts ...markov.GenerateOption) Chain {
	return &markovChain{gen: gen, model: model, opts: opts}
}

func (c *markovChain) Utterance(ctx context.Context) (string, error) {
	return c.gen.Generate(ctx, c.model, c.opts...)
}

// TextGenerator shapes raw utterances into sentences, paragraphs and titles.
// Nothing is cached, so every call samples the chain again. A TextGenerator
// is not safe for concurrent use.
type TextGenerator struct {
	chain                 Chain
	sentencesPerParagraph int
	titleWords            int
	upper                 cases.Caser
	lower                 cases.Caser
}

// NewTextGenerator returns a TextGenerator over chain. Non-positive counts
// fall back to the defaults of 5 sentences per paragraph and 5 title words.
func NewTextGenerator(chain Chain, sentencesPerParagraph, titleWords int) *TextGenerator {
	if sentencesPerParagraph <= 0 {
		sentencesPerParagraph = DefaultSentencesPerParagraph
	}
	if titleWords <= 0 {
		titleWords = DefaultTitleWords
	}
	return &TextGenerator{
		chain:                 chain,
		sentencesPerParagraph: sentencesPerParagraph,
		titleWords:            titleWords,
		upper:                 cases.Upper(language.Und),
		lower:                 cases.Lower(language.Und),
	}
}

// Sentence returns one utterance exactly as the chain produced it.
func (g *TextGenerator) Sentence(ctx context.Context) (string, error) {
	s, err := g.chain.Utterance(ctx)
	if err != nil {
		return "", generationError("generate sentence", err)
	}
	return s, nil
}

// Paragraph joins independently generated sentences with single spaces.
func (g *TextGenerator) Paragraph(ctx context.Context) (string, error) {
	sentences := make([]string, g.sentencesPerParagraph)
	for i := range sentences {
		s, err := g.Sentence(ctx)
		if err != nil {
			return "", err
		}
		sentences[i] = s
	}
	return strings.Join(sentences, " "), nil
}

// Paragraphs returns n independently generated paragraphs.
func (g *TextGenerator) Paragraphs(ctx context.Context, n int) ([]string, error) {
	paragraphs := make([]string, 0, max(n, 0))
	for i := 0; i < n; i++ {
		p, err := g.Paragraph(ctx)
		if err != nil {
			return nil, err
		}
		paragraphs = append(paragraphs, p)
	}
	return paragraphs, nil
}

// Title turns one utterance into a heading: periods are removed, the first
// words are kept and each one is capitalized.
func (g *TextGenerator) Title(ctx context.Context) (string, error) {
	s, err := g.Sentence(ctx)
	if err != nil {
		return "", err
	}
	return g.titleFrom(s), nil
}

func (g *TextGenerator) titleFrom(utterance string) string {
	words := strings.Fields(strings.ReplaceAll(utterance, ".", ""))
	if len(words) > g.titleWords {
		words = words[:g.titleWords]
	}
	for i, w := range words {
		words[i] = g.capitalize(w)
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first rune of word and lower-cases the rest.
// Hyphens and slashes inside the word don't start a new capital.
func (g *TextGenerator) capitalize(word string) string {
	_, size := utf8.DecodeRuneInString(word)
	return g.upper.String(word[:size]) + g.lower.String(word[size:])
}
