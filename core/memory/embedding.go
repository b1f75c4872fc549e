package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

func OpenAIEmbeddingFunc(client *openai.Client, model string) chromem.EmbeddingFunc {
	return chromem.EmbeddingFunc(
		func(ctx context.Context, text string) ([]float32, error) {
			resp, err := client.CreateEmbeddings(ctx,
				openai.EmbeddingRequestStrings{
					Input: []string{text},
					Model: openai.EmbeddingModel(model),
				},
			)
			if err != nil {
				return []float32{}, fmt.Errorf("error getting embeddings: %v", err)
			}

			if len(resp.Data) == 0 {
				return []float32{}, fmt.Errorf("no response from OpenAI API")
			}

			return resp.Data[0].Embedding, nil
		},
	)
}

func GenAIEmbeddingFunc(client *genai.Client, model string) chromem.EmbeddingFunc {
	return chromem.EmbeddingFunc(
		func(ctx context.Context, text string) ([]float32, error) {
			result, err := client.Models.EmbedContent(ctx,
				model,
				[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
				nil,
			)
			if err != nil {
				return nil, fmt.Errorf("GenAI embed failed: %w", err)
			}

			if len(result.Embeddings) == 0 {
				return nil, fmt.Errorf("no embeddings returned")
			}

			return result.Embeddings[0].Values, nil
		},
	)
}

// HashEmbeddingFunc embeds text as a normalized bag of hashed words. It
// needs no provider and is used when embeddings are configured as "local".
// Texts sharing most of their words land close to each other.
func HashEmbeddingFunc(dims int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, dims)
		for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[h.Sum32()%uint32(dims)]++
		}

		var norm float64
		for _, x := range v {
			norm += float64(x * x)
		}
		if norm == 0 {
			v[0] = 1
			return v, nil
		}
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
		return v, nil
	}
}
