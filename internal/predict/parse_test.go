package predict

import "testing"

func TestExtractJSONArrayFromFencedBlock(t *testing.T) {
	raw := "Here is the result:\n```json\n[{\"homeTeam\":\"Lakers\"}]\n```\nGood luck!"
	got, ok := extractJSONArray(raw)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `[{"homeTeam":"Lakers"}]` {
		t.Fatalf("got=%q", got)
	}
}

func TestExtractJSONArrayBareInput(t *testing.T) {
	raw := `[{"a":1},{"b":2}]`
	got, ok := extractJSONArray(raw)
	if !ok || got != raw {
		t.Fatalf("got=%q ok=%v", got, ok)
	}
}

func TestExtractJSONArrayNoJSON(t *testing.T) {
	if _, ok := extractJSONArray("I cannot comply."); ok {
		t.Fatal("expected extraction to fail")
	}
}

func TestExtractJSONArrayIgnoresBracketsInStrings(t *testing.T) {
	raw := `prefix [{"note":"uses ] and [ inside","x":1}] suffix`
	got, ok := extractJSONArray(raw)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `[{"note":"uses ] and [ inside","x":1}]` {
		t.Fatalf("got=%q", got)
	}
}

func TestExtractJSONArrayHandlesEscapedQuotes(t *testing.T) {
	raw := `[{"quote":"he said \"done]\" loudly"}]`
	got, ok := extractJSONArray(raw)
	if !ok || got != raw {
		t.Fatalf("got=%q ok=%v", got, ok)
	}
}

func TestExtractJSONObjectFromProse(t *testing.T) {
	raw := "The verdict follows: {\"error\": \"match already started\"} — end."
	got, ok := extractJSONObject(raw)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if got != `{"error": "match already started"}` {
		t.Fatalf("got=%q", got)
	}
}

func TestExtractJSONObjectUnbalanced(t *testing.T) {
	if _, ok := extractJSONObject(`{"a": {"b": 1}`); ok {
		t.Fatal("expected extraction to fail on unbalanced input")
	}
}
