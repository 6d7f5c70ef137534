package state

import (
	"encoding/json"
	"testing"
)

func TestContextMarshalFlattensExtra(t *testing.T) {
	t.Parallel()

	sc := NewContext()
	sc.Count = 2
	sc.Story = "title - url"
	sc.SetExtra("missingLocation", true)

	data, err := json.Marshal(sc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", flat["count"])
	}
	if flat["story"] != "title - url" {
		t.Fatalf("story = %v", flat["story"])
	}
	if flat["missingLocation"] != true {
		t.Fatalf("missingLocation = %v, want true", flat["missingLocation"])
	}
	if _, ok := flat["forecast"]; ok {
		t.Fatal("empty forecast must stay absent")
	}
	if _, ok := flat["Extra"]; ok {
		t.Fatal("Extra must not leak as its own key")
	}
}

func TestContextUnmarshalSplitsKnownKeys(t *testing.T) {
	t.Parallel()

	raw := `{"count":3,"forecast":"clear sky in Chicago","sessionDone":true}`

	sc := NewContext()
	if err := json.Unmarshal([]byte(raw), sc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if sc.Count != 3 {
		t.Fatalf("Count = %d, want 3", sc.Count)
	}
	if sc.Forecast != "clear sky in Chicago" {
		t.Fatalf("Forecast = %q", sc.Forecast)
	}
	if sc.Extra["sessionDone"] != true {
		t.Fatalf("Extra[sessionDone] = %v, want true", sc.Extra["sessionDone"])
	}
}

func TestContextAbsentCountMeansZero(t *testing.T) {
	t.Parallel()

	sc := NewContext()
	if err := json.Unmarshal([]byte(`{}`), sc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if sc.Count != 0 {
		t.Fatalf("Count = %d, want 0", sc.Count)
	}
}

func TestContextCloneIsIsolated(t *testing.T) {
	t.Parallel()

	sc := NewContext()
	sc.Story = "original"
	sc.SetExtra("flag", "a")

	cloned, err := sc.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	cloned.Story = "changed"
	cloned.SetExtra("flag", "b")

	if sc.Story != "original" {
		t.Fatalf("source Story mutated: %q", sc.Story)
	}
	if sc.Extra["flag"] != "a" {
		t.Fatalf("source Extra mutated: %v", sc.Extra["flag"])
	}
}

func TestContextCloneRejectsUnserializableExtra(t *testing.T) {
	t.Parallel()

	sc := NewContext()
	sc.SetExtra("fn", func() {})

	if _, err := sc.Clone(); err == nil {
		t.Fatal("expected error for unserializable context")
	}
}
