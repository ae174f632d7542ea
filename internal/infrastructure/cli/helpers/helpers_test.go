package helpers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/vrelay/internal/domain"
)

func TestCalculateTopCommands(t *testing.T) {
	freq := map[string]int{"ls": 3, "pwd": 1, "date": 3, "whoami": 2}

	got := CalculateTopCommands(freq, 3)
	want := []CommandStatistic{{"date", 3}, {"ls", 3}, {"whoami", 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("CalculateTopCommands mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, CalculateTopCommands(freq, 0), 4)
}

func TestCalculateSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSuccessRate(0, 0))
	assert.Equal(t, 75.0, CalculateSuccessRate(3, 4))
}

func TestDeriveUndoHintsOnlyForSuccessfulRecords(t *testing.T) {
	records := []domain.HistoryRecord{
		{Command: "git commit -am wip", Success: true},
		{Command: "rm -f notes.txt", Success: false},
		{Command: "os.Remove(\"a.txt\")", Success: true},
		{Command: "git push", Success: true},
	}
	hints := DeriveUndoHints(records)
	require.Len(t, hints, 2)
	assert.Contains(t, hints[0]+hints[1], "git reflog")
	assert.Contains(t, hints[0]+hints[1], "removed by scripts")
}

func TestLookupConfigValue(t *testing.T) {
	cfg := domain.Config{
		Preferences: domain.Preferences{DefaultModel: "groq"},
		Models:      []domain.ModelDefinition{{Name: "groq", ModelID: "llama3-70b-8192"}},
	}

	got, err := LookupConfigValue(cfg, "preferences.default_model")
	require.NoError(t, err)
	assert.Equal(t, "groq\n", got)

	got, err = LookupConfigValue(cfg, "models.0.model_id")
	require.NoError(t, err)
	assert.Equal(t, "llama3-70b-8192\n", got)

	_, err = LookupConfigValue(cfg, "models.7.name")
	assert.Error(t, err)
	_, err = LookupConfigValue(cfg, "nope")
	assert.Error(t, err)
}
