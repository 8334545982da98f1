package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekyxme/relnodes/internal/connection"
)

func strPtr(s string) *string { return &s }

func TestEngine_Import(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	candidates := []Candidate{
		{FirstName: "Jane", LastName: "Doe", Company: strPtr("Acme")},
		{FirstName: "John", LastName: "Smith"},
	}

	result, err := engine.Import(ctx, "u1", candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 0, result.Skipped)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, c := range list {
		assert.False(t, c.Geocoded())
		assert.Nil(t, c.Tags)
		assert.Nil(t, c.Notes)
	}
}

func TestEngine_Import_FullName(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	_, err := engine.Import(ctx, "u1", []Candidate{{FirstName: "Jane", LastName: ""}})
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane", list[0].FullName)
}

func TestEngine_Import_Idempotent(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	candidates := []Candidate{
		{FirstName: "Jane", LastName: "Doe", Company: strPtr("Acme")},
		{FirstName: "John", LastName: "Smith", ProfileURL: strPtr("https://linkedin.com/in/john")},
	}

	first, err := engine.Import(ctx, "u1", candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)

	// Re-importing the same file imports nothing and skips everything.
	second, err := engine.Import(ctx, "u1", candidates)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count)
	assert.Equal(t, first.Count, second.Skipped)
}

func TestEngine_Import_DuplicateWithinFile(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	candidates := []Candidate{
		{FirstName: "Jane", LastName: "Doe", Company: strPtr("Acme")},
		{FirstName: "Jane", LastName: "Doe", Company: strPtr("Acme")},
		{FirstName: "John", LastName: "Smith", ProfileURL: strPtr("https://linkedin.com/in/john")},
	}

	result, err := engine.Import(ctx, "u1", candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Skipped)
}

func TestEngine_Import_CompanyDistinguishes(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	// Same person name at two companies: not duplicates.
	result, err := engine.Import(ctx, "u1", []Candidate{
		{FirstName: "Jane", LastName: "Doe", Company: strPtr("Acme")},
		{FirstName: "Jane", LastName: "Doe", Company: strPtr("Globex")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 0, result.Skipped)
}

func TestEngine_Import_ProfileURLWins(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	// Same URL under different names is still the same person.
	result, err := engine.Import(ctx, "u1", []Candidate{
		{FirstName: "Jane", LastName: "Doe", ProfileURL: strPtr("https://linkedin.com/in/jd")},
		{FirstName: "Janet", LastName: "Deer", ProfileURL: strPtr("https://linkedin.com/in/jd")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 1, result.Skipped)
}

func TestEngine_Import_DiscardsNonLinkedInURL(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	_, err := engine.Import(ctx, "u1", []Candidate{
		{FirstName: "Jane", LastName: "Doe", ProfileURL: strPtr("https://example.com/in/jane")},
	})
	require.NoError(t, err)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ProfileURL)
}

func TestEngine_Import_PerUserScope(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)
	ctx := context.Background()

	candidates := []Candidate{{FirstName: "Jane", LastName: "Doe", Company: strPtr("Acme")}}

	r1, err := engine.Import(ctx, "u1", candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Count)

	// The same file imported by another user is not deduplicated away.
	r2, err := engine.Import(ctx, "u2", candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Count)
}

func TestEndToEnd_NormalizeAndImport(t *testing.T) {
	csv := samplePreamble + sampleHeader +
		"Jane,Doe,,,Acme,,\n" +
		"Jane,Doe,,,Acme,,\n" +
		"John,Smith,https://linkedin.com/in/john,,,,\n"

	candidates, err := Normalize(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	repo := connection.NewInMemoryRepository()
	engine := NewEngine(repo, nil)

	result, err := engine.Import(context.Background(), "u1", candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Skipped)
}
