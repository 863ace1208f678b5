package trace

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "traces.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBSaveAndGet(t *testing.T) {
	db := testDB(t)

	r := Start("cholesterol trend")
	parent := r.AddEvent(EventStageStart, "orchestrator", StageQueryAnalysis, nil, 0)
	r.AddChildEvent(EventLLMResponse, "orchestrator", StageQueryAnalysis,
		map[string]any{"response_text": "<complexity>simple</complexity>"}, 50*time.Millisecond, parent)
	r.UpdateContext("model", "claude-sonnet")
	tr := r.End()

	if err := db.Save(tr); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := db.Get(tr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Query != "cholesterol trend" {
		t.Errorf("query = %q", got.Query)
	}
	if len(got.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(got.Events))
	}
	if got.Events[2].ParentEventID != parent {
		t.Errorf("parent link lost")
	}
	if got.Events[2].Data["response_text"] != "<complexity>simple</complexity>" {
		t.Errorf("event data = %v", got.Events[2].Data)
	}
	if got.Context["model"] != "claude-sonnet" {
		t.Errorf("context = %v", got.Context)
	}
}

func TestDBSaveReplacesExisting(t *testing.T) {
	db := testDB(t)

	tr := Start("first").End()
	if err := db.Save(tr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	tr.Query = "updated"
	if err := db.Save(tr); err != nil {
		t.Fatalf("re-Save: %v", err)
	}

	got, err := db.Get(tr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Query != "updated" {
		t.Errorf("query = %q, want updated", got.Query)
	}
}

func TestDBGetMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("no-such-trace"); err == nil {
		t.Fatal("expected error for missing trace")
	}
}

func TestDBList(t *testing.T) {
	db := testDB(t)

	for _, q := range []string{"one", "two", "three"} {
		if err := db.Save(Start(q).End()); err != nil {
			t.Fatalf("Save %s: %v", q, err)
		}
	}

	summaries, err := db.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 3 {
		t.Errorf("summaries = %d, want 3", len(summaries))
	}
	for _, s := range summaries {
		if s.EventCount == 0 {
			t.Errorf("trace %s has zero events in listing", s.ID)
		}
	}
}

func TestDBSaveRejectsEmptyID(t *testing.T) {
	db := testDB(t)
	if err := db.Save(&Trace{Query: "q"}); err == nil {
		t.Fatal("expected error for empty trace id")
	}
}
