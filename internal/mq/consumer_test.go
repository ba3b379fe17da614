package mq

import (
	"context"
	"errors"
	"ideafeed/internal/models"
	"ideafeed/internal/services"
	"testing"
)

type fakeNotes struct {
	ids []uint
	err error
}

func (f *fakeNotes) Process(_ context.Context, noteID uint) (*services.PublishResult, error) {
	f.ids = append(f.ids, noteID)
	return &services.PublishResult{Post: &models.Post{ID: 1}}, f.err
}

func (f *fakeNotes) Publish(ctx context.Context, noteID uint) (*services.PublishResult, error) {
	return f.Process(ctx, noteID)
}

type fakeEngagement struct {
	got []services.Engagement
	err error
}

func (f *fakeEngagement) Record(_ context.Context, e services.Engagement) (*services.EngagementResult, error) {
	f.got = append(f.got, e)
	return &services.EngagementResult{PostID: e.PostID}, f.err
}

func TestHandleRoutesByQueue(t *testing.T) {
	classifier, publication, engagement := &fakeNotes{}, &fakeNotes{}, &fakeEngagement{}
	c := NewConsumer(nil, classifier, publication, engagement)
	ctx := context.Background()

	if err := c.Handle(ctx, QueueNoteCreated, []byte(`{"note_id":5}`)); err != nil {
		t.Fatalf("note.created: %v", err)
	}
	if err := c.Handle(ctx, QueueNoteProcessed, []byte(`{"note_id":6}`)); err != nil {
		t.Fatalf("note.processed: %v", err)
	}
	if err := c.Handle(ctx, QueuePostEngagement, []byte(`{"tenant_id":1,"user_id":2,"post_id":3,"action":"like"}`)); err != nil {
		t.Fatalf("post.engagement: %v", err)
	}

	if len(classifier.ids) != 1 || classifier.ids[0] != 5 {
		t.Errorf("classifier got %v, want [5]", classifier.ids)
	}
	if len(publication.ids) != 1 || publication.ids[0] != 6 {
		t.Errorf("publication got %v, want [6]", publication.ids)
	}
	want := services.Engagement{TenantID: 1, UserID: 2, PostID: 3, Action: services.ActionLike}
	if len(engagement.got) != 1 || engagement.got[0] != want {
		t.Errorf("engagement got %+v, want %+v", engagement.got, want)
	}
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c := NewConsumer(nil, &fakeNotes{}, &fakeNotes{}, &fakeEngagement{})
	ctx := context.Background()

	cases := []struct {
		queue string
		body  string
	}{
		{QueueNoteCreated, `not json`},
		{QueueNoteProcessed, `{"note_id":0}`},
		{QueuePostEngagement, `{"post_id":3,"action":"retweet"}`},
		{"unknown.queue", `{}`},
	}
	for _, tc := range cases {
		err := c.Handle(ctx, tc.queue, []byte(tc.body))
		if err == nil {
			t.Errorf("%s %s: expected error", tc.queue, tc.body)
			continue
		}
		if ack(err) != ackDrop {
			t.Errorf("%s %s: ack = %v, want drop", tc.queue, tc.body, ack(err))
		}
	}
}

func TestAckPolicy(t *testing.T) {
	transient := &services.TransientError{Op: "load note", Err: errors.New("conn reset")}
	cases := []struct {
		err  error
		want ackMode
	}{
		{nil, ackOK},
		{transient, ackRequeue},
		{context.DeadlineExceeded, ackRequeue},
		{services.ErrNotFound, ackDrop},
		{services.ErrNoteNotReady, ackDrop},
	}
	for _, tc := range cases {
		if got := ack(tc.err); got != tc.want {
			t.Errorf("ack(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestQueuesFollowHandlers(t *testing.T) {
	c := NewConsumer(nil, nil, &fakeNotes{}, nil)
	qs := c.queues()
	if len(qs) != 1 || qs[0] != QueueNoteProcessed {
		t.Errorf("queues = %v, want [%s]", qs, QueueNoteProcessed)
	}
}
