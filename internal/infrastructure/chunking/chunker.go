package chunking

import (
	"strings"

	"github.com/chirplabs/chirp/internal/core/domain"
)

const (
	defaultTargetTokens  = 500
	defaultOverlapTokens = 50
)

// Chunker greedily packs sentences into chunks of roughly TargetTokens,
// seeding each new chunk with a sentence-level overlap from the previous
// one. Deterministic and side-effect-free.
type Chunker struct {
	TargetTokens  int
	OverlapTokens int
}

func New(targetTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = defaultTargetTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= targetTokens {
		overlapTokens = targetTokens / 4
	}
	return &Chunker{
		TargetTokens:  targetTokens,
		OverlapTokens: overlapTokens,
	}
}

// Chunk splits text into overlapping sentence-bounded chunks tagged with
// source. Empty or whitespace-only text yields no chunks. A single sentence
// above the target size becomes its own oversized chunk; sentences are
// never broken internally.
func (c *Chunker) Chunk(text, source string) []domain.TextChunk {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	tokens := make([]int, len(sentences))
	for i, s := range sentences {
		tokens[i] = EstimateTokens(s)
	}

	chunks := make([]domain.TextChunk, 0, 4)
	emit := func(idx []int) {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = sentences[j]
		}
		joined := strings.Join(parts, " ")
		chunks = append(chunks, domain.TextChunk{
			Text:          joined,
			Index:         len(chunks),
			TokenEstimate: EstimateTokens(joined),
			Source:        source,
		})
	}

	var current []int
	currentTokens := 0

	for i := range sentences {
		// Oversized sentences are emitted whole rather than split.
		if tokens[i] > c.TargetTokens {
			if len(current) > 0 {
				emit(current)
				current, currentTokens = nil, 0
			}
			emit([]int{i})
			continue
		}

		if currentTokens+tokens[i] > c.TargetTokens && len(current) > 0 {
			emit(current)
			current, currentTokens = c.overlapSuffix(current, tokens)
		}

		current = append(current, i)
		currentTokens += tokens[i]
	}

	if len(current) > 0 {
		emit(current)
	}
	return chunks
}

// overlapSuffix picks the trailing sentences of the closed chunk, by index,
// whose cumulative estimate fits the overlap budget. Selecting by position
// keeps duplicate sentence text from confusing the carry-over.
func (c *Chunker) overlapSuffix(closed []int, tokens []int) ([]int, int) {
	kept := 0
	total := 0
	for i := len(closed) - 1; i >= 0; i-- {
		t := tokens[closed[i]]
		if total+t > c.OverlapTokens {
			break
		}
		total += t
		kept++
	}
	if kept == 0 {
		return nil, 0
	}
	suffix := make([]int, kept)
	copy(suffix, closed[len(closed)-kept:])
	return suffix, total
}
