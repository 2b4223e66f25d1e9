// Package mock provides function-field test doubles for the core interfaces.
//
// Every mock falls back to a simple in-memory behavior when its function
// field is nil, and counts calls so tests can assert on them:
//
//	emb := mock.NewMockEmbedder(3)
//	emb.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("boom")
//	}
package mock
