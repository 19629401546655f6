//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hausratText = `Allgemeine Bedingungen für die Hausratversicherung.

§ 1 Versicherte Sachen. Versichert ist der gesamte Hausrat in der
Wohnung des Versicherungsnehmers, einschließlich Möbel, Kleidung und
Geräte des täglichen Gebrauchs. Wertsachen sind bis zu 20 Prozent der
Versicherungssumme mitversichert.

§ 2 Versicherte Gefahren. Versicherungsschutz besteht gegen Schäden
durch Brand, Blitzschlag, Explosion, Einbruchdiebstahl, Raub,
Leitungswasser, Sturm und Hagel. Elementarschäden sind nur bei
gesonderter Vereinbarung versichert.

§ 3 Selbstbeteiligung. Je Versicherungsfall trägt der
Versicherungsnehmer die vereinbarte Selbstbeteiligung in Höhe von 150
Euro selbst. Bei grober Fahrlässigkeit kann die Leistung gekürzt
werden.

§ 4 Kündigung. Der Vertrag kann von beiden Seiten mit einer Frist von
drei Monaten zum Ende der Versicherungsperiode gekündigt werden. Nach
einem Versicherungsfall steht beiden Parteien ein außerordentliches
Kündigungsrecht zu.`

// TestE2E_Health verifies the server comes up and reports healthy
func TestE2E_Health(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Get("/health")
	require.NoError(t, err)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &health))
	assert.Equal(t, "ok", health.Status)
}

// TestE2E_DocumentLifecycle covers create, background ingestion, read and
// delete of a document through the HTTP surface
func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var documentID string

	t.Run("create document enqueues ingest", func(t *testing.T) {
		resp, err := env.Post("/v1/documents", map[string]interface{}{
			"insurerId": "ins-allsecura",
			"text":      hausratText,
			"metadata": map[string]string{
				"title":    "AVB Hausrat 2026",
				"category": "hausrat",
			},
		})
		require.NoError(t, err)

		var created struct {
			DocumentID string `json:"documentId"`
			JobID      string `json:"jobId"`
			Status     string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &created))
		assert.NotEmpty(t, created.DocumentID)
		assert.NotEmpty(t, created.JobID)
		assert.Equal(t, "pending", created.Status)

		documentID = created.DocumentID
	})

	t.Run("worker chunks and embeds the document", func(t *testing.T) {
		env.WaitForIngest(documentID, 30*time.Second)

		resp, err := env.Get("/v1/documents/" + documentID)
		require.NoError(t, err)

		var doc struct {
			ID         string `json:"id"`
			InsurerID  string `json:"insurerId"`
			ChunkCount int    `json:"chunkCount"`
			Metadata   struct {
				Title    string `json:"title"`
				Category string `json:"category"`
			} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		assert.Equal(t, documentID, doc.ID)
		assert.Equal(t, "ins-allsecura", doc.InsurerID)
		assert.Equal(t, "AVB Hausrat 2026", doc.Metadata.Title)
		assert.GreaterOrEqual(t, doc.ChunkCount, 1)
	})

	t.Run("delete removes document and chunks", func(t *testing.T) {
		_, err := env.Delete("/v1/documents/" + documentID)
		require.NoError(t, err)

		_, err = env.Get("/v1/documents/" + documentID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("unknown document returns 404", func(t *testing.T) {
		_, err := env.Get("/v1/documents/00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

// TestE2E_QueryPipeline runs the full question-answering path against an
// ingested document
func TestE2E_QueryPipeline(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	documentID := env.CreateDocument("ins-allsecura", hausratText, "AVB Hausrat 2026", "hausrat")
	env.WaitForIngest(documentID, 30*time.Second)

	type queryResponse struct {
		Answer  string `json:"answer"`
		Sources []struct {
			DocumentID string  `json:"documentId"`
			Text       string  `json:"text"`
			Similarity float32 `json:"similarity"`
		} `json:"sources"`
		Strategy string `json:"strategy"`
		Degraded bool   `json:"degraded"`
		Cached   bool   `json:"cached"`
		Timings  struct {
			EmbedMs  int64 `json:"embedMs"`
			SearchMs int64 `json:"searchMs"`
			LLMMs    int64 `json:"llmMs"`
			TotalMs  int64 `json:"totalMs"`
		} `json:"timings"`
	}

	question := map[string]interface{}{
		"question": "Wie hoch ist die Selbstbeteiligung in der Hausratversicherung?",
		"category": "hausrat",
	}

	t.Run("answers from ingested chunks", func(t *testing.T) {
		resp, err := env.Post("/v1/query", question)
		require.NoError(t, err)

		var result queryResponse
		require.NoError(t, json.Unmarshal(resp.Data, &result))

		assert.NotEmpty(t, result.Answer)
		assert.Equal(t, "vector", result.Strategy)
		assert.False(t, result.Degraded)
		require.NotEmpty(t, result.Sources)
		assert.Equal(t, documentID, result.Sources[0].DocumentID)
		assert.GreaterOrEqual(t, result.Timings.TotalMs, int64(0))
	})

	t.Run("repeated question is served from cache", func(t *testing.T) {
		resp, err := env.Post("/v1/query", question)
		require.NoError(t, err)

		var result queryResponse
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.True(t, result.Cached)
		assert.NotEmpty(t, result.Answer)
	})

	t.Run("queries are recorded", func(t *testing.T) {
		var count int
		err := env.Pool.QueryRow(env.Ctx, "SELECT COUNT(*) FROM query_logs").Scan(&count)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 1)
	})
}

// TestE2E_QueryValidation checks request validation on the query endpoint
func TestE2E_QueryValidation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("empty question is rejected", func(t *testing.T) {
		_, err := env.Post("/v1/query", map[string]interface{}{"question": "   "})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		resp, err := env.HTTPClient.Post(env.ServerURL+"/v1/query", "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode)
	})
}
