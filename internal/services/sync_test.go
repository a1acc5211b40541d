package services

import (
	"encoding/json"
	"testing"

	"github.com/studyloop/backend/internal/types"
)

func TestMergeBatch_CompleteWinsOnNewerTimestamp(t *testing.T) {
	data := types.NewSnapshotData()
	data.Lessons[7] = types.SnapshotLesson{CompletedAt: 1000}

	mergeBatch(&data, SyncRequest{
		CourseID:         1,
		LessonsCompleted: []SyncItem{{ID: 7, TS: 2000}},
	})
	if data.Lessons[7].CompletedAt != 2000 {
		t.Fatalf("expected completed_at=2000 got %d", data.Lessons[7].CompletedAt)
	}

	mergeBatch(&data, SyncRequest{
		CourseID:         1,
		LessonsCompleted: []SyncItem{{ID: 7, TS: 1500}},
	})
	if data.Lessons[7].CompletedAt != 2000 {
		t.Fatalf("stale completion overwrote newer one: %d", data.Lessons[7].CompletedAt)
	}
}

func TestMergeBatch_UncompleteDeletesOnEqualOrNewer(t *testing.T) {
	data := types.NewSnapshotData()
	data.Lessons[3] = types.SnapshotLesson{CompletedAt: 1000}

	mergeBatch(&data, SyncRequest{
		CourseID:          1,
		LessonsIncomplete: []SyncItem{{ID: 3, TS: 999}},
	})
	if _, ok := data.Lessons[3]; !ok {
		t.Fatalf("stale uncomplete removed a newer completion")
	}

	mergeBatch(&data, SyncRequest{
		CourseID:          1,
		LessonsIncomplete: []SyncItem{{ID: 3, TS: 1000}},
	})
	if _, ok := data.Lessons[3]; ok {
		t.Fatalf("uncomplete with equal timestamp should delete the entry")
	}
}

func TestMergeBatch_UncompleteForUnknownLessonIsNoop(t *testing.T) {
	data := types.NewSnapshotData()
	mergeBatch(&data, SyncRequest{
		CourseID:          1,
		LessonsIncomplete: []SyncItem{{ID: 42, TS: 5000}},
	})
	if len(data.Lessons) != 0 {
		t.Fatalf("expected empty lessons map, got %d entries", len(data.Lessons))
	}
}

func TestMergeBatch_QuestionStatusLastWriteWins(t *testing.T) {
	data := types.NewSnapshotData()

	mergeBatch(&data, SyncRequest{
		CourseID:       1,
		QuestionStatus: []QuestionStatusItem{{ID: 9, Status: "incorrect", TS: 100}},
	})
	mergeBatch(&data, SyncRequest{
		CourseID:       1,
		QuestionStatus: []QuestionStatusItem{{ID: 9, Status: "correct", TS: 200}},
	})
	if data.Questions[9].Status != "correct" {
		t.Fatalf("expected correct, got %q", data.Questions[9].Status)
	}

	// The older write arriving late must not win.
	mergeBatch(&data, SyncRequest{
		CourseID:       1,
		QuestionStatus: []QuestionStatusItem{{ID: 9, Status: "incorrect", TS: 150}},
	})
	if data.Questions[9].Status != "correct" {
		t.Fatalf("stale status overwrote newer one: %q", data.Questions[9].Status)
	}
}

func TestMergeBatch_OrderIndependent(t *testing.T) {
	a := SyncRequest{
		CourseID:         1,
		LessonsCompleted: []SyncItem{{ID: 1, TS: 100}, {ID: 2, TS: 500}},
		QuestionStatus:   []QuestionStatusItem{{ID: 1, Status: "incorrect", TS: 50}},
	}
	b := SyncRequest{
		CourseID:          1,
		LessonsCompleted:  []SyncItem{{ID: 1, TS: 300}},
		LessonsIncomplete: []SyncItem{{ID: 2, TS: 600}},
		QuestionStatus:    []QuestionStatusItem{{ID: 1, Status: "correct", TS: 75}},
	}

	ab := types.NewSnapshotData()
	mergeBatch(&ab, a)
	mergeBatch(&ab, b)

	ba := types.NewSnapshotData()
	mergeBatch(&ba, b)
	mergeBatch(&ba, a)

	rawAB, _ := ab.JSON()
	rawBA, _ := ba.JSON()
	if string(rawAB) != string(rawBA) {
		t.Fatalf("merge not commutative:\n%s\n%s", rawAB, rawBA)
	}
}

func TestMergeBatch_Idempotent(t *testing.T) {
	req := SyncRequest{
		CourseID:         1,
		LessonsCompleted: []SyncItem{{ID: 4, TS: 400}},
		QuestionStatus:   []QuestionStatusItem{{ID: 4, Status: "correct", TS: 400}},
	}

	once := types.NewSnapshotData()
	mergeBatch(&once, req)
	twice := types.NewSnapshotData()
	mergeBatch(&twice, req)
	mergeBatch(&twice, req)

	rawOnce, _ := once.JSON()
	rawTwice, _ := twice.JSON()
	if string(rawOnce) != string(rawTwice) {
		t.Fatalf("merge not idempotent:\n%s\n%s", rawOnce, rawTwice)
	}
}

func TestMillis_UnmarshalFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{`1700000000000`, 1700000000000},
		{`1700000000`, 1700000000000},
		{`"2023-11-14T22:13:20Z"`, 1700000000000},
	}
	for _, tc := range cases {
		var m Millis
		if err := json.Unmarshal([]byte(tc.raw), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if int64(m) != tc.want {
			t.Fatalf("raw %s: expected %d got %d", tc.raw, tc.want, int64(m))
		}
	}

	var m Millis
	if err := json.Unmarshal([]byte(`"not-a-time"`), &m); err == nil {
		t.Fatalf("expected error for garbage timestamp")
	}
}

func TestValidateSyncRequest(t *testing.T) {
	valid := SyncRequest{
		CourseID:       1,
		QuestionStatus: []QuestionStatusItem{{ID: 1, Status: "correct", TS: 1}},
	}
	if err := validateSyncRequest(valid); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	if err := validateSyncRequest(SyncRequest{CourseID: 0}); err == nil {
		t.Fatalf("expected error for missing course id")
	}
	if err := validateSyncRequest(SyncRequest{CourseID: 1, XPDelta: XPDelta{Lessons: -1}}); err == nil {
		t.Fatalf("expected error for negative delta")
	}
	if err := validateSyncRequest(SyncRequest{
		CourseID:       1,
		QuestionStatus: []QuestionStatusItem{{ID: 1, Status: "maybe", TS: 1}},
	}); err == nil {
		t.Fatalf("expected error for unknown question status")
	}
	if err := validateSyncRequest(SyncRequest{
		CourseID:         1,
		LessonsCompleted: []SyncItem{{ID: 1, TS: 0}},
	}); err == nil {
		t.Fatalf("expected error for zero timestamp")
	}
	if err := validateSyncRequest(SyncRequest{
		CourseID:          1,
		LessonsIncomplete: []SyncItem{{ID: 1, TS: -5}},
	}); err == nil {
		t.Fatalf("expected error for negative timestamp")
	}
	if err := validateSyncRequest(SyncRequest{
		CourseID:       1,
		QuestionStatus: []QuestionStatusItem{{ID: 1, Status: "correct", TS: 0}},
	}); err == nil {
		t.Fatalf("expected error for zero question timestamp")
	}
}

func TestSnapshotETag_ChangesWithContentAndVersion(t *testing.T) {
	a := snapshotETag([]byte(`{"lessons":{}}`), 1)
	b := snapshotETag([]byte(`{"lessons":{}}`), 2)
	c := snapshotETag([]byte(`{"lessons":{"1":{}}}`), 1)

	if a == b || a == c {
		t.Fatalf("etags should differ: %s %s %s", a, b, c)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-char etag, got %q", a)
	}
	if a != snapshotETag([]byte(`{"lessons":{}}`), 1) {
		t.Fatalf("etag not deterministic")
	}
}
