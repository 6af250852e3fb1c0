package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"studio-backend/internal/assistant"
	"studio-backend/internal/attachments"
	"studio-backend/internal/balance"
	"studio-backend/internal/catalog"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/entitlement"
)

type stubAssistant struct {
	mu      sync.Mutex
	reply   assistant.Reply
	err     error
	block   chan struct{}
	calls   int
	lastIn  assistant.Input
}

func (a *stubAssistant) Converse(ctx context.Context, in assistant.Input) (assistant.Reply, error) {
	a.mu.Lock()
	a.calls++
	a.lastIn = in
	block := a.block
	a.mu.Unlock()
	if block != nil {
		<-block
	}
	if a.err != nil {
		return assistant.Reply{}, a.err
	}
	return a.reply, nil
}

type stubSubmitter struct {
	err    error
	calls  int
	lastIn dispatch.SubmitInput
}

func (s *stubSubmitter) Submit(ctx context.Context, in dispatch.SubmitInput) (dispatch.Handle, error) {
	s.calls++
	s.lastIn = in
	if s.err != nil {
		return dispatch.Handle{}, s.err
	}
	return dispatch.Handle{UsageID: "usage-1"}, nil
}

type stubIssuer struct {
	url string
}

func (i stubIssuer) IssueTarget(ctx context.Context, userID, fileName, mediaType string, size int64) (attachments.UploadTarget, error) {
	return attachments.UploadTarget{URL: i.url, StorageKey: "uploads/" + fileName, ExpiresIn: time.Minute}, nil
}

func testModule() catalog.ModuleDescriptor {
	return catalog.ModuleDescriptor{
		ID:          "doc-generator",
		Name:        "Document Generator",
		BaseCost:    20,
		MinimumCost: 15,
		Options: []catalog.Option{
			{ID: "doc-report", Label: "Report", Category: "document_type", Multiplier: 1},
			{ID: "doc-proposal", Label: "Proposal", Category: "document_type", Multiplier: 1.5},
			{ID: "doc-whitepaper", Label: "Whitepaper", Category: "document_type", Multiplier: 2, PremiumOnly: true},
		},
		Flags: []catalog.Flag{
			{ID: "seo", Label: "SEO optimization", Multiplier: 1.1},
		},
		QuantityDims: []catalog.QuantityDim{
			{Field: "page_count", Label: "Pages", FreeThreshold: 5, BucketSize: 5, PerBucketCost: 1.33, CeilingKind: entitlement.KindBatchSize},
		},
		RequiredFields: []string{"topic", "tone"},
		Attachments: catalog.AttachmentPolicy{
			AllowedTypes: []string{"text/plain", "application/pdf"},
			MaxSizeBytes: 1 << 20,
			MaxCount:     3,
		},
	}
}

func newTestService(t *testing.T, asst assistant.Client, sub Submitter, desc catalog.ModuleDescriptor) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	if asst == nil {
		asst = &stubAssistant{reply: assistant.Reply{Message: "ok", State: assistant.StateCollecting}}
	}
	if sub == nil {
		sub = &stubSubmitter{}
	}

	return NewService(
		NewMemoryStore(),
		catalog.NewService(catalog.NewMemoryRepo(desc)),
		balance.NewService(),
		asst,
		attachments.NewPipeline(stubIssuer{url: srv.URL}),
		sub,
	)
}

func mustCreate(t *testing.T, svc *Service) Session {
	t.Helper()
	sess, err := svc.Create(context.Background(), "user-1", "doc-generator")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.State != StateCollecting {
		t.Fatalf("new session state = %q, want %q", sess.State, StateCollecting)
	}
	return sess
}

func TestFieldEditsDriveState(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	sess, err := svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "topic", "quarterly report")
	if err != nil {
		t.Fatalf("ApplyFieldEdit() error = %v", err)
	}
	if sess.State != StateCollecting {
		t.Fatalf("state after one field = %q, want %q", sess.State, StateCollecting)
	}

	sess, err = svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "tone", "formal")
	if err != nil {
		t.Fatalf("ApplyFieldEdit() error = %v", err)
	}
	if sess.State != StateReadyForConfirmation {
		t.Fatalf("state with all fields = %q, want %q", sess.State, StateReadyForConfirmation)
	}

	// Clearing a required field invalidates readiness.
	sess, err = svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "tone", "")
	if err != nil {
		t.Fatalf("ApplyFieldEdit() error = %v", err)
	}
	if sess.State != StateCollecting {
		t.Fatalf("state after clearing field = %q, want %q", sess.State, StateCollecting)
	}
}

func TestAssistantDrivenFlow(t *testing.T) {
	asst := &stubAssistant{reply: assistant.Reply{
		Message: "All set. Ready to generate?",
		State:   assistant.StateReady,
		Fields:  map[string]string{"topic": "Q3 results", "tone": "formal"},
	}}
	sub := &stubSubmitter{}
	svc := newTestService(t, asst, sub, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	sess, reply, err := svc.SendMessage(ctx, "user-1", sess.ID, "Write about Q3 results, formal tone")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply.Message == "" {
		t.Fatal("expected a reply message")
	}
	if sess.Spec.Fields["topic"] != "Q3 results" {
		t.Errorf("topic = %q, want merged assistant value", sess.Spec.Fields["topic"])
	}
	if sess.State != StateReadyForConfirmation {
		t.Fatalf("state = %q, want %q", sess.State, StateReadyForConfirmation)
	}
	if asst.lastIn.Snapshot.ModuleID != "doc-generator" {
		t.Errorf("snapshot module = %q", asst.lastIn.Snapshot.ModuleID)
	}

	sess, handle, err := svc.Confirm(ctx, "user-1", sess.ID, "req-1")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if handle.UsageID == "" {
		t.Fatal("expected a tracking handle")
	}
	if sess.State != StateConfirmed {
		t.Fatalf("state = %q, want %q", sess.State, StateConfirmed)
	}
	if sub.calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", sub.calls)
	}

	// Confirmed is terminal: nothing may mutate the specification.
	if _, err := svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "topic", "changed"); !errors.Is(err, ErrCompleted) {
		t.Fatalf("ApplyFieldEdit on confirmed session error = %v, want ErrCompleted", err)
	}
	got, err := svc.Get(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Spec.Fields["topic"] != "Q3 results" {
		t.Errorf("confirmed specification mutated: topic = %q", got.Spec.Fields["topic"])
	}
}

func TestAssistantReadySignalVerifiedLocally(t *testing.T) {
	// The assistant claims readiness but reports no field values; the
	// session must stay collecting.
	asst := &stubAssistant{reply: assistant.Reply{Message: "done!", State: assistant.StateReady}}
	svc := newTestService(t, asst, nil, testModule())
	sess := mustCreate(t, svc)

	sess, _, err := svc.SendMessage(context.Background(), "user-1", sess.ID, "hi")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if sess.State != StateCollecting {
		t.Fatalf("state = %q, want %q", sess.State, StateCollecting)
	}
}

func TestAssistantFailureKeepsStateAndLogsNotice(t *testing.T) {
	asst := &stubAssistant{err: errors.New("provider timeout")}
	svc := newTestService(t, asst, nil, testModule())
	sess := mustCreate(t, svc)

	got, reply, err := svc.SendMessage(context.Background(), "user-1", sess.ID, "hello")
	if !errors.Is(err, ErrAssistantUnavailable) {
		t.Fatalf("SendMessage() error = %v, want ErrAssistantUnavailable", err)
	}
	if got.State != StateCollecting {
		t.Fatalf("state changed to %q on assistant failure", got.State)
	}
	if reply.Message == "" {
		t.Fatal("expected an apologetic notice")
	}
	// User entry plus the notice; the conversation continues.
	if len(got.Log) != 2 {
		t.Fatalf("log length = %d, want 2", len(got.Log))
	}
	if got.Log[0].Role != RoleUser || got.Log[1].Role != RoleSystem {
		t.Fatalf("log roles = %q/%q", got.Log[0].Role, got.Log[1].Role)
	}
}

func TestInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	asst := &stubAssistant{
		reply: assistant.Reply{Message: "ok", State: assistant.StateCollecting},
		block: release,
	}
	svc := newTestService(t, asst, nil, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, _, err := svc.SendMessage(ctx, "user-1", sess.ID, "a")
		done <- err
	}()

	<-started
	// Wait for the first call to reach the assistant, then issue a second.
	deadline := time.After(2 * time.Second)
	for {
		asst.mu.Lock()
		calls := asst.calls
		asst.mu.Unlock()
		if calls == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first SendMessage never reached the assistant")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, _, err := svc.SendMessage(ctx, "user-1", sess.ID, "b"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second SendMessage error = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first SendMessage error = %v", err)
	}

	got, err := svc.Get(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	userEntries := 0
	for _, e := range got.Log {
		if e.Role == RoleUser {
			userEntries++
		}
	}
	if userEntries != 1 {
		t.Fatalf("expected exactly 1 user log entry, got %d", userEntries)
	}
}

func TestGateRejectionLeavesSpecUnchanged(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	sess, err := svc.SelectOption(ctx, "user-1", sess.ID, "doc-report")
	if err != nil {
		t.Fatalf("SelectOption() error = %v", err)
	}
	before := sess.Spec

	// Free plan selecting a premium option: rejected, nothing changes.
	if _, err := svc.SelectOption(ctx, "user-1", sess.ID, "doc-whitepaper"); !errors.Is(err, entitlement.ErrPremiumRequired) {
		t.Fatalf("SelectOption() error = %v, want ErrPremiumRequired", err)
	}

	got, err := svc.Get(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got.Spec.Options, before.Options) {
		t.Fatalf("options changed: %v -> %v", before.Options, got.Spec.Options)
	}

	// Upgrading the plan permits the same selection.
	if _, err := svc.Balance.SetPlan(ctx, "user-1", "premium", 500); err != nil {
		t.Fatalf("SetPlan() error = %v", err)
	}
	got, err = svc.SelectOption(ctx, "user-1", sess.ID, "doc-whitepaper")
	if err != nil {
		t.Fatalf("SelectOption() after upgrade error = %v", err)
	}
	if len(got.Spec.Options) != 1 || got.Spec.Options[0] != "doc-whitepaper" {
		t.Fatalf("options = %v, want single doc-whitepaper (same category replaced)", got.Spec.Options)
	}
}

func TestQuantityCeiling(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	// Free tier batch ceiling is 5.
	if _, err := svc.SetQuantity(ctx, "user-1", sess.ID, "page_count", 50); !errors.Is(err, entitlement.ErrOverCeiling) {
		t.Fatalf("SetQuantity() error = %v, want ErrOverCeiling", err)
	}
	if _, err := svc.SetQuantity(ctx, "user-1", sess.ID, "page_count", 5); err != nil {
		t.Fatalf("SetQuantity() error = %v", err)
	}
	if _, err := svc.SetQuantity(ctx, "user-1", sess.ID, "missing", 1); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("SetQuantity() error = %v, want ErrUnknownField", err)
	}
}

func TestQuoteRecomputedPerCall(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	q1, err := svc.Quote(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q1.Credits != 20 {
		t.Fatalf("empty spec quote = %d, want base 20", q1.Credits)
	}

	if _, err := svc.SelectOption(ctx, "user-1", sess.ID, "doc-proposal"); err != nil {
		t.Fatalf("SelectOption() error = %v", err)
	}
	if _, err := svc.ToggleFlag(ctx, "user-1", sess.ID, "seo", true); err != nil {
		t.Fatalf("ToggleFlag() error = %v", err)
	}

	q2, err := svc.Quote(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q2.Credits != 33 {
		t.Fatalf("quote = %d, want ceil(ceil(20*1.5)*1.1) = 33", q2.Credits)
	}

	q3, err := svc.Quote(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q3.Credits != q2.Credits {
		t.Fatalf("quote not deterministic: %d then %d", q2.Credits, q3.Credits)
	}
}

func TestAttachBatchPartialFailure(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	big := make([]byte, (1<<20)+1)
	uploads := []Upload{
		{Name: "notes.txt", MediaType: "text/plain", Data: []byte("reference notes")},
		{Name: "huge.txt", MediaType: "text/plain", Data: big},
		{Name: "more.txt", MediaType: "text/plain", Data: []byte("more notes")},
	}

	got, result, err := svc.Attach(ctx, "user-1", sess.ID, uploads)
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if result.Accepted != 2 {
		t.Fatalf("accepted = %d, want 2", result.Accepted)
	}
	if len(got.Spec.Attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(got.Spec.Attachments))
	}
	if !errors.Is(result.Outcomes[1].Err, attachments.ErrTooLarge) {
		t.Fatalf("outcome[1] err = %v, want ErrTooLarge", result.Outcomes[1].Err)
	}
	if got.Spec.ReferenceText != "reference notes" {
		t.Errorf("reference text = %q", got.Spec.ReferenceText)
	}

	// Session is still usable afterwards.
	if _, err := svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "topic", "t"); err != nil {
		t.Fatalf("ApplyFieldEdit() after batch error = %v", err)
	}
}

func TestAttachmentRequirementDrivesState(t *testing.T) {
	desc := testModule()
	desc.ID = "transcriber"
	desc.RequiredFields = []string{"language", "source_media"}
	desc.Attachments.RequiredFor = "source_media"

	svc := newTestService(t, nil, nil, desc)
	sess, err := svc.Create(context.Background(), "user-1", "transcriber")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ctx := context.Background()

	sess, err = svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "language", "en")
	if err != nil {
		t.Fatalf("ApplyFieldEdit() error = %v", err)
	}
	if sess.State != StateAwaitingAttachment {
		t.Fatalf("state = %q, want %q", sess.State, StateAwaitingAttachment)
	}

	sess, result, err := svc.Attach(ctx, "user-1", sess.ID, []Upload{
		{Name: "audio-notes.txt", MediaType: "text/plain", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if result.Accepted != 1 {
		t.Fatalf("accepted = %d, want 1", result.Accepted)
	}
	if sess.State != StateReadyForConfirmation {
		t.Fatalf("state after upload = %q, want %q", sess.State, StateReadyForConfirmation)
	}

	// Removing the only attachment re-opens the requirement.
	sess, err = svc.RemoveAttachment(ctx, "user-1", sess.ID, result.Outcomes[0].Record.ID)
	if err != nil {
		t.Fatalf("RemoveAttachment() error = %v", err)
	}
	if sess.State != StateAwaitingAttachment {
		t.Fatalf("state after removal = %q, want %q", sess.State, StateAwaitingAttachment)
	}
}

func TestConfirmFailureStaysReady(t *testing.T) {
	sub := &stubSubmitter{err: dispatch.ErrQueueUnavailable}
	svc := newTestService(t, nil, sub, testModule())
	sess := mustCreate(t, svc)
	ctx := context.Background()

	if _, err := svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "topic", "t"); err != nil {
		t.Fatalf("ApplyFieldEdit() error = %v", err)
	}
	sess, err := svc.ApplyFieldEdit(ctx, "user-1", sess.ID, "tone", "casual")
	if err != nil {
		t.Fatalf("ApplyFieldEdit() error = %v", err)
	}
	if sess.State != StateReadyForConfirmation {
		t.Fatalf("state = %q, want ready", sess.State)
	}

	if _, _, err := svc.Confirm(ctx, "user-1", sess.ID, ""); !errors.Is(err, dispatch.ErrQueueUnavailable) {
		t.Fatalf("Confirm() error = %v, want ErrQueueUnavailable", err)
	}

	got, err := svc.Get(ctx, "user-1", sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateReadyForConfirmation {
		t.Fatalf("state after failed dispatch = %q, want ready for retry", got.State)
	}

	// Retry succeeds once the backend recovers.
	sub.err = nil
	got, handle, err := svc.Confirm(ctx, "user-1", sess.ID, "")
	if err != nil {
		t.Fatalf("Confirm() retry error = %v", err)
	}
	if got.State != StateConfirmed || handle.UsageID == "" {
		t.Fatalf("retry state = %q handle = %q", got.State, handle.UsageID)
	}
}

func TestConfirmRequiresReadyState(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)

	if _, _, err := svc.Confirm(context.Background(), "user-1", sess.ID, ""); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Confirm() error = %v, want ErrNotReady", err)
	}
}

func TestSessionScopedToOwner(t *testing.T) {
	svc := newTestService(t, nil, nil, testModule())
	sess := mustCreate(t, svc)

	if _, err := svc.Get(context.Background(), "someone-else", sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() as other user error = %v, want ErrNotFound", err)
	}
}
