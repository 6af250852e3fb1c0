package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studio-backend/internal/assistant"
	"studio-backend/internal/attachments"
	"studio-backend/internal/balance"
	"studio-backend/internal/catalog"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/entitlement"
	"studio-backend/internal/pricing"
	"studio-backend/internal/shared/telemetry"
)

// Submitter hands a completed specification to the execution backend.
type Submitter interface {
	Submit(ctx context.Context, in dispatch.SubmitInput) (dispatch.Handle, error)
}

// Upload is one attachment candidate received over HTTP. The bytes are
// held in memory so they can be both transferred and text-extracted.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Service owns the conversation state machine. Every specification
// mutation flows through it; collaborators (catalog, pricing, assistant,
// attachments, dispatch) are read-only from its point of view.
type Service struct {
	Store      Store
	Catalog    *catalog.Service
	Balance    *balance.Service
	Assistant  assistant.Client
	Pipeline   *attachments.Pipeline
	Dispatcher Submitter

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewService constructs a Service.
func NewService(store Store, cat *catalog.Service, bal *balance.Service, asst assistant.Client, pipe *attachments.Pipeline, disp Submitter) *Service {
	return &Service{
		Store:      store,
		Catalog:    cat,
		Balance:    bal,
		Assistant:  asst,
		Pipeline:   pipe,
		Dispatcher: disp,
		inFlight:   make(map[string]bool),
	}
}

// acquire marks the session's single network slot busy. At most one
// SendMessage or Confirm may be outstanding per session; a second call
// is rejected, not queued.
func (s *Service) acquire(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] {
		return ErrBusy
	}
	s.inFlight[sessionID] = true
	return nil
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}

// Create opens a fresh session against a module with an empty
// specification in the collecting state.
func (s *Service) Create(ctx context.Context, userID, moduleID string) (Session, error) {
	desc, err := s.Catalog.Get(ctx, moduleID)
	if err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModuleID:  desc.ID,
		State:     StateCollecting,
		Spec:      NewSpecification(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Create(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	telemetry.Info("session.created", map[string]any{
		"session_id": sess.ID,
		"module_id":  desc.ID,
	})
	return sess, nil
}

// Get returns a session scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	return s.Store.Get(ctx, userID, sessionID)
}

// ApplyFieldEdit sets (or clears, when value is empty) one named field.
// Clearing a previously-satisfied required field reverts the state to
// collecting; edits on a confirmed session are rejected.
func (s *Service) ApplyFieldEdit(ctx context.Context, userID, sessionID, name, value string) (Session, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, ErrCompleted
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, fmt.Errorf("field name is required")
	}
	if strings.TrimSpace(value) == "" {
		delete(sess.Spec.Fields, name)
	} else {
		sess.Spec.Fields[name] = value
	}

	sess.State = evaluateState(desc, sess.Spec)
	return s.save(ctx, sess)
}

// SelectOption selects an option after vetting it against the
// entitlement gate. A rejected selection leaves the specification
// exactly as it was. At most one option per category is kept.
func (s *Service) SelectOption(ctx context.Context, userID, sessionID, optionID string) (Session, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, ErrCompleted
	}

	opt, ok := desc.OptionByID(optionID)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", pricing.ErrUnknownOption, optionID)
	}

	gate, err := s.gate(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := gate.Allows(entitlement.Gated{PremiumOnly: opt.PremiumOnly, FeatureArea: opt.FeatureArea}); err != nil {
		return Session{}, fmt.Errorf("option %s: %w", optionID, err)
	}

	kept := sess.Spec.Options[:0]
	for _, id := range sess.Spec.Options {
		if prev, ok := desc.OptionByID(id); ok && prev.Category == opt.Category {
			continue
		}
		kept = append(kept, id)
	}
	sess.Spec.Options = append(kept, optionID)

	return s.save(ctx, sess)
}

// ToggleFlag enables or disables a boolean feature flag, gate-vetted
// the same way options are.
func (s *Service) ToggleFlag(ctx context.Context, userID, sessionID, flagID string, enabled bool) (Session, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, ErrCompleted
	}

	flag, ok := desc.FlagByID(flagID)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", pricing.ErrUnknownOption, flagID)
	}

	kept := sess.Spec.Flags[:0]
	for _, id := range sess.Spec.Flags {
		if id != flagID {
			kept = append(kept, id)
		}
	}
	sess.Spec.Flags = kept

	if enabled {
		gate, err := s.gate(ctx, userID)
		if err != nil {
			return Session{}, err
		}
		if err := gate.Allows(entitlement.Gated{PremiumOnly: flag.PremiumOnly, FeatureArea: flag.FeatureArea}); err != nil {
			return Session{}, fmt.Errorf("flag %s: %w", flagID, err)
		}
		sess.Spec.Flags = append(sess.Spec.Flags, flagID)
	}

	return s.save(ctx, sess)
}

// SetQuantity sets a quantity-scaled dimension value, rejecting values
// above the tier ceiling for the dimension's declared kind.
func (s *Service) SetQuantity(ctx context.Context, userID, sessionID, field string, n int) (Session, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, ErrCompleted
	}

	dim, ok := desc.DimByField(field)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if n < 0 {
		return Session{}, fmt.Errorf("quantity %s must be non-negative", field)
	}

	if dim.CeilingKind != "" {
		gate, err := s.gate(ctx, userID)
		if err != nil {
			return Session{}, err
		}
		if err := gate.AllowQuantity(dim.CeilingKind, n); err != nil {
			return Session{}, fmt.Errorf("quantity %s: %w", field, err)
		}
	}

	if n == 0 {
		delete(sess.Spec.Quantities, field)
	} else {
		sess.Spec.Quantities[field] = n
	}

	return s.save(ctx, sess)
}

// Quote prices the current specification. The result is derived, never
// stored; every call recomputes from scratch.
func (s *Service) Quote(ctx context.Context, userID, sessionID string) (pricing.Quote, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return pricing.Quote{}, err
	}
	ent, err := s.Balance.EntitlementFor(ctx, userID)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.ComputeQuote(selectionOf(sess.Spec), desc, ent)
}

// SendMessage forwards the user's message plus the entire current
// specification snapshot to the assistant, merges reported fields back
// in and applies the reported state signal. On assistant failure the
// specification and state stay unchanged and an apologetic notice is
// appended to the log.
func (s *Service) SendMessage(ctx context.Context, userID, sessionID, text string) (Session, assistant.Reply, error) {
	if err := s.acquire(sessionID); err != nil {
		return Session{}, assistant.Reply{}, err
	}
	defer s.release(sessionID)

	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, assistant.Reply{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, assistant.Reply{}, ErrCompleted
	}

	sess.Log = append(sess.Log, LogEntry{Role: RoleUser, Text: text, At: time.Now().UTC()})

	reply, err := s.Assistant.Converse(ctx, assistant.Input{
		SessionID: sess.ID,
		Message:   text,
		Snapshot:  snapshotOf(desc, sess.Spec),
	})
	if err != nil {
		telemetry.Error("session.assistant_failed", map[string]any{
			"session_id": sess.ID,
			"module_id":  sess.ModuleID,
			"err":        err.Error(),
		})
		notice := "Sorry, I couldn't process that just now. Please try again."
		sess.Log = append(sess.Log, LogEntry{Role: RoleSystem, Text: notice, At: time.Now().UTC()})
		saved, saveErr := s.save(ctx, sess)
		if saveErr != nil {
			return Session{}, assistant.Reply{}, saveErr
		}
		return saved, assistant.Reply{Message: notice, State: sess.State}, fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
	}

	for name, value := range reply.Fields {
		name = strings.TrimSpace(name)
		if name == "" || strings.TrimSpace(value) == "" {
			continue
		}
		sess.Spec.Fields[name] = value
	}

	sess.Log = append(sess.Log, LogEntry{Role: RoleAssistant, Text: reply.Message, At: time.Now().UTC()})
	sess.State = nextState(desc, sess.Spec, reply, sess.State)

	saved, err := s.save(ctx, sess)
	if err != nil {
		return Session{}, assistant.Reply{}, err
	}
	return saved, reply, nil
}

// Attach runs a batch of candidate files through the upload pipeline
// and appends the accepted records. One file's failure never aborts the
// rest. Text is extracted from the first extractable accepted document
// and kept as assistant context.
func (s *Service) Attach(ctx context.Context, userID, sessionID string, uploads []Upload) (Session, attachments.BatchResult, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, attachments.BatchResult{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, attachments.BatchResult{}, ErrCompleted
	}

	gate, err := s.gate(ctx, userID)
	if err != nil {
		return Session{}, attachments.BatchResult{}, err
	}

	limit := desc.Attachments.MaxCount
	if ceiling := gate.MaxAllowed(entitlement.KindAttachments); ceiling >= 0 && (limit <= 0 || ceiling < limit) {
		limit = ceiling
	}
	slots := limit - len(sess.Spec.Attachments)
	if slots < 0 {
		slots = 0
	}

	files := make([]attachments.File, 0, len(uploads))
	for _, u := range uploads {
		files = append(files, attachments.File{
			Name:      u.Name,
			MediaType: u.MediaType,
			Size:      int64(len(u.Data)),
			Body:      bytes.NewReader(u.Data),
		})
	}

	result := s.Pipeline.UploadBatch(ctx, userID, desc.Attachments, slots, files)

	for i, outcome := range result.Outcomes {
		if outcome.Record == nil {
			continue
		}
		sess.Spec.Attachments = append(sess.Spec.Attachments, *outcome.Record)
		if sess.Spec.ReferenceText == "" && attachments.CanExtract(outcome.Record.MediaType) {
			text, err := attachments.ExtractReferenceText(uploads[i].Data, outcome.Record.MediaType)
			if err != nil {
				telemetry.Warn("session.extract_failed", map[string]any{
					"session_id": sess.ID,
					"file_name":  outcome.Record.FileName,
					"err":        err.Error(),
				})
				continue
			}
			sess.Spec.ReferenceText = text
		}
	}

	if result.Accepted > 0 {
		sess.State = evaluateState(desc, sess.Spec)
	}

	saved, err := s.save(ctx, sess)
	if err != nil {
		return Session{}, attachments.BatchResult{}, err
	}
	return saved, result, nil
}

// RemoveAttachment drops a record from the specification. This is a
// local list mutation only; the stored object is left in place.
func (s *Service) RemoveAttachment(ctx context.Context, userID, sessionID, attachmentID string) (Session, error) {
	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, ErrCompleted
	}

	kept := sess.Spec.Attachments[:0]
	found := false
	for _, rec := range sess.Spec.Attachments {
		if rec.ID == attachmentID {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return Session{}, ErrAttachmentNotFound
	}
	sess.Spec.Attachments = kept

	sess.State = evaluateState(desc, sess.Spec)
	return s.save(ctx, sess)
}

// Confirm hands the specification to the dispatcher. Only legal from
// ready_for_confirmation; on dispatch failure the session stays ready
// so the user can retry without re-entering anything.
func (s *Service) Confirm(ctx context.Context, userID, sessionID, requestID string) (Session, dispatch.Handle, error) {
	if err := s.acquire(sessionID); err != nil {
		return Session{}, dispatch.Handle{}, err
	}
	defer s.release(sessionID)

	sess, desc, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Session{}, dispatch.Handle{}, err
	}
	if sess.State == StateConfirmed {
		return Session{}, dispatch.Handle{}, ErrCompleted
	}
	if sess.State != StateReadyForConfirmation {
		return Session{}, dispatch.Handle{}, ErrNotReady
	}

	handle, err := s.Dispatcher.Submit(ctx, dispatch.SubmitInput{
		UserID:     userID,
		SessionID:  sess.ID,
		RequestID:  requestID,
		Descriptor: desc,
		Selection:  selectionOf(sess.Spec),
		Payload:    payloadOf(sess.Spec),
	})
	if err != nil {
		return Session{}, dispatch.Handle{}, err
	}

	sess.State = StateConfirmed
	sess.UsageID = handle.UsageID
	sess.Log = append(sess.Log, LogEntry{
		Role: RoleSystem,
		Text: "Your job has been submitted.",
		At:   time.Now().UTC(),
	})

	saved, err := s.save(ctx, sess)
	if err != nil {
		return Session{}, dispatch.Handle{}, err
	}
	return saved, handle, nil
}

func (s *Service) load(ctx context.Context, userID, sessionID string) (Session, catalog.ModuleDescriptor, error) {
	sess, err := s.Store.Get(ctx, userID, sessionID)
	if err != nil {
		return Session{}, catalog.ModuleDescriptor{}, err
	}
	desc, err := s.Catalog.Get(ctx, sess.ModuleID)
	if err != nil {
		return Session{}, catalog.ModuleDescriptor{}, fmt.Errorf("module %s: %w", sess.ModuleID, err)
	}
	return sess, desc, nil
}

func (s *Service) save(ctx context.Context, sess Session) (Session, error) {
	sess.UpdatedAt = time.Now().UTC()
	if err := s.Store.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (s *Service) gate(ctx context.Context, userID string) (*entitlement.Gate, error) {
	ent, err := s.Balance.EntitlementFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return entitlement.NewGate(ent), nil
}

// evaluateState derives the state from hard local facts: every declared
// required field must be non-empty, and a module that requires an
// upload must have at least one attachment.
func evaluateState(desc catalog.ModuleDescriptor, spec Specification) string {
	attachmentSatisfied := desc.Attachments.RequiredFor == "" || len(spec.Attachments) > 0

	for _, name := range desc.RequiredFields {
		if name == desc.Attachments.RequiredFor {
			if !attachmentSatisfied {
				return StateAwaitingAttachment
			}
			continue
		}
		if strings.TrimSpace(spec.Fields[name]) == "" {
			return StateCollecting
		}
	}
	if !attachmentSatisfied {
		return StateAwaitingAttachment
	}
	return StateReadyForConfirmation
}

// nextState applies the assistant's reported signal, demoting it where
// it conflicts with local facts: a ready signal with a missing required
// field stays collecting, an attachment request already satisfied falls
// back to local evaluation.
func nextState(desc catalog.ModuleDescriptor, spec Specification, reply assistant.Reply, current string) string {
	switch reply.State {
	case assistant.StateReady:
		return evaluateState(desc, spec)
	case assistant.StateAwaitingAttachment:
		if len(spec.Attachments) > 0 {
			return evaluateState(desc, spec)
		}
		return StateAwaitingAttachment
	case assistant.StateCollecting:
		if reply.MissingField != "" && reply.MissingField == desc.Attachments.RequiredFor && len(spec.Attachments) == 0 {
			return StateAwaitingAttachment
		}
		return StateCollecting
	default:
		return current
	}
}

func selectionOf(spec Specification) pricing.Selection {
	return pricing.Selection{
		Options:    spec.Options,
		Flags:      spec.Flags,
		Quantities: spec.Quantities,
	}
}

func snapshotOf(desc catalog.ModuleDescriptor, spec Specification) assistant.Snapshot {
	names := make([]string, 0, len(spec.Attachments))
	for _, rec := range spec.Attachments {
		names = append(names, rec.FileName)
	}
	return assistant.Snapshot{
		ModuleID:       desc.ID,
		ModuleName:     desc.Name,
		RequiredFields: desc.RequiredFields,
		Fields:         spec.Fields,
		Options:        spec.Options,
		Flags:          spec.Flags,
		Quantities:     spec.Quantities,
		Attachments:    names,
		ReferenceText:  spec.ReferenceText,
	}
}

func payloadOf(spec Specification) map[string]any {
	keys := make([]string, 0, len(spec.Attachments))
	for _, rec := range spec.Attachments {
		keys = append(keys, rec.StorageKey)
	}
	payload := map[string]any{
		"fields":      spec.Fields,
		"options":     spec.Options,
		"flags":       spec.Flags,
		"quantities":  spec.Quantities,
		"attachments": keys,
	}
	if spec.ReferenceText != "" {
		payload["referenceText"] = spec.ReferenceText
	}
	return payload
}
