package services

import (
	"context"
	"errors"
	"ideafeed/internal/db/dbtest"
	"ideafeed/internal/models"
	"testing"
	"time"
)

type fakeClassifier struct {
	result   Classification
	err      error
	classify int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (*Classification, error) {
	f.classify++
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	return &r, nil
}

func (f *fakeClassifier) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	neighbor *Neighbor
	upserts  map[uint]uint // note → cluster
}

func (f *fakeIndex) Nearest(_ context.Context, _ uint, _ []float32) (*Neighbor, error) {
	return f.neighbor, nil
}

func (f *fakeIndex) Upsert(_ context.Context, noteID, _, clusterID uint, _ []float32) error {
	if f.upserts == nil {
		f.upserts = map[uint]uint{}
	}
	f.upserts[noteID] = clusterID
	return nil
}

func newTestClassifier(t *testing.T, c *fakeClassifier, idx *fakeIndex) *ClassifierService {
	gdb := dbtest.New(t)
	pub := NewPublicationService(gdb, nil, nil)
	pub.now = fixedClock
	s := NewClassifierService(gdb, c, idx, pub)
	s.now = fixedClock
	return s
}

func pendingNote(t *testing.T, s *ClassifierService, tenantID uint, text string) *models.Note {
	t.Helper()
	n := models.Note{TenantID: tenantID, UserID: 4, RawText: text, Status: models.NoteStatusPending, CreatedAt: ago(time.Hour)}
	mustCreate(t, s.db, &n)
	return &n
}

func TestProcessCreatesClusterAndPublishes(t *testing.T) {
	c := &fakeClassifier{result: Classification{Pillar: "Tooling", ClarifiedText: "Build a faster linter.", Relevance: 12}}
	idx := &fakeIndex{}
	s := newTestClassifier(t, c, idx)
	note := pendingNote(t, s, 1, "linter too slow!!")

	res, err := s.Process(context.Background(), note.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res == nil || res.Post == nil || res.Post.Content != "Build a faster linter." {
		t.Fatalf("result = %+v, want published clarified text", res)
	}

	var stored models.Note
	s.db.First(&stored, note.ID)
	if stored.Status != models.NoteStatusProcessed || stored.ProcessedAt == nil || stored.ClusterID == nil {
		t.Fatalf("note = %+v, want processed with cluster", stored)
	}
	if stored.RelevanceScore == nil || *stored.RelevanceScore != 10 {
		t.Errorf("relevance = %v, want clamped to 10", stored.RelevanceScore)
	}

	var cluster models.Cluster
	s.db.First(&cluster, *stored.ClusterID)
	if cluster.NoteCount != 1 || cluster.Title != "Build a faster linter." || !cluster.LastUpdatedAt.Equal(testNow) {
		t.Errorf("cluster = %+v", cluster)
	}
	if idx.upserts[note.ID] != cluster.ID {
		t.Errorf("vector upsert cluster = %d, want %d", idx.upserts[note.ID], cluster.ID)
	}
	if len(res.Post.TagNames) != 1 || res.Post.TagNames[0] != "tooling" {
		t.Errorf("tags = %v, want [tooling]", res.Post.TagNames)
	}
}

func TestProcessJoinsNeighborCluster(t *testing.T) {
	c := &fakeClassifier{result: Classification{Pillar: "Tooling", ClarifiedText: "Cache lint results."}}
	idx := &fakeIndex{}
	s := newTestClassifier(t, c, idx)

	existing := models.Cluster{TenantID: 1, Title: "Lint speed", NoteCount: 3, LastUpdatedAt: ago(30 * time.Hour)}
	mustCreate(t, s.db, &existing)
	idx.neighbor = &Neighbor{NoteID: 99, ClusterID: existing.ID, Score: 0.9}
	note := pendingNote(t, s, 1, "cache lint")

	if _, err := s.Process(context.Background(), note.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	var cluster models.Cluster
	s.db.First(&cluster, existing.ID)
	if cluster.NoteCount != 4 || !cluster.LastUpdatedAt.Equal(testNow) {
		t.Errorf("cluster = %+v, want note_count 4 bumped to now", cluster)
	}
	var clusters int64
	s.db.Model(&models.Cluster{}).Count(&clusters)
	if clusters != 1 {
		t.Errorf("clusters = %d, want 1", clusters)
	}
}

func TestProcessIgnoresForeignNeighbor(t *testing.T) {
	c := &fakeClassifier{result: Classification{ClarifiedText: "x"}}
	idx := &fakeIndex{}
	s := newTestClassifier(t, c, idx)
	foreign := models.Cluster{TenantID: 2, Title: "other", NoteCount: 1, LastUpdatedAt: ago(time.Hour)}
	mustCreate(t, s.db, &foreign)
	idx.neighbor = &Neighbor{ClusterID: foreign.ID}
	note := pendingNote(t, s, 1, "x")

	if _, err := s.Process(context.Background(), note.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	var stored models.Note
	s.db.First(&stored, note.ID)
	if stored.ClusterID == nil || *stored.ClusterID == foreign.ID {
		t.Errorf("cluster_id = %v, must not join tenant 2 cluster", stored.ClusterID)
	}
}

func TestProcessRefused(t *testing.T) {
	c := &fakeClassifier{result: Classification{Refused: true}}
	s := newTestClassifier(t, c, &fakeIndex{})
	note := pendingNote(t, s, 1, "spam spam")

	res, err := s.Process(context.Background(), note.ID)
	if err != nil || res != nil {
		t.Fatalf("Process = %+v, %v; want nil, nil", res, err)
	}
	var stored models.Note
	s.db.First(&stored, note.ID)
	if stored.Status != models.NoteStatusRefused {
		t.Errorf("status = %s, want refused", stored.Status)
	}
	var posts int64
	s.db.Model(&models.Post{}).Count(&posts)
	if posts != 0 {
		t.Errorf("posts = %d, want 0", posts)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	c := &fakeClassifier{result: Classification{ClarifiedText: "Once"}}
	s := newTestClassifier(t, c, &fakeIndex{})
	note := pendingNote(t, s, 1, "once")
	ctx := context.Background()

	first, err := s.Process(ctx, note.ID)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := s.Process(ctx, note.ID)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if !second.AlreadyPublished || second.Post.ID != first.Post.ID {
		t.Errorf("second = %+v, want already published", second)
	}
	if c.classify != 1 {
		t.Errorf("classify calls = %d, want 1", c.classify)
	}
}

func TestProcessClassifierError(t *testing.T) {
	c := &fakeClassifier{err: errors.New("upstream 502")}
	s := newTestClassifier(t, c, &fakeIndex{})
	note := pendingNote(t, s, 1, "x")

	_, err := s.Process(context.Background(), note.ID)
	if !IsRetryable(err) {
		t.Errorf("err = %v, want retryable", err)
	}
	var stored models.Note
	s.db.First(&stored, note.ID)
	if stored.Status != models.NoteStatusPending {
		t.Errorf("status = %s, want pending", stored.Status)
	}
}

func TestClusterTitleTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "字"
	}
	got := []rune(clusterTitle(long))
	if len(got) != clusterTitleRunes+1 {
		t.Errorf("title runes = %d, want %d", len(got), clusterTitleRunes+1)
	}
	if clusterTitle("  a \n b ") != "a b" {
		t.Errorf("clusterTitle did not collapse whitespace")
	}
}
