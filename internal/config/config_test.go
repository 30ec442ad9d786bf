package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("unexpected default api port %q", cfg.APIPort)
	}
	if cfg.RetrievalTopK != 3 || cfg.RetrievalFloor != 0.6 {
		t.Fatalf("unexpected retrieval defaults %d / %v", cfg.RetrievalTopK, cfg.RetrievalFloor)
	}
	if cfg.ChunkTargetTokens != 500 || cfg.ChunkOverlapTokens != 50 {
		t.Fatalf("unexpected chunk defaults %d / %d", cfg.ChunkTargetTokens, cfg.ChunkOverlapTokens)
	}
	if cfg.RateWindowSeconds != 60 || cfg.RateMaxMessages != 10 {
		t.Fatalf("unexpected rate defaults %d / %d", cfg.RateWindowSeconds, cfg.RateMaxMessages)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Fatalf("unexpected vector backend %q", cfg.VectorBackend)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "5")
	t.Setenv("RETRIEVAL_SCORE_FLOOR", "0.75")
	t.Setenv("VECTOR_BACKEND", "memory")

	cfg := Load()
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected override 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalFloor != 0.75 {
		t.Fatalf("expected override 0.75, got %v", cfg.RetrievalFloor)
	}
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected override memory, got %q", cfg.VectorBackend)
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("RETRIEVAL_TOP_K", "three")
	t.Setenv("QDRANT_USE_TLS", "not-a-bool")

	cfg := Load()
	if cfg.RetrievalTopK != 3 {
		t.Fatalf("expected fallback 3, got %d", cfg.RetrievalTopK)
	}
	if cfg.QdrantUseTLS {
		t.Fatalf("expected fallback false")
	}
}
