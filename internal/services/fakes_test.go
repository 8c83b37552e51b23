package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lifedigital/internal/models"
	"lifedigital/internal/repositories"
	"lifedigital/internal/utils"
)

// Fakes em memória dos repositórios e gateways, com a mesma semântica de CAS
// dos repositórios reais.

type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = r.seq
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetCPF(userID int64, cpf string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.CPF = cpf
		u.CPFVerified = false
	}
	return nil
}

func (r *fakeUserRepo) SetPhone(userID int64, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PhoneE164 = phone
		u.WhatsappVerified = false
	}
	return nil
}

func (r *fakeUserRepo) SetAttributeVerified(userID int64, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("usuário %d inexistente", userID)
	}
	switch kind {
	case models.VerificationKindCPF:
		u.CPFVerified = true
	case models.VerificationKindPhone:
		u.WhatsappVerified = true
	}
	return nil
}

type fakeChallengeRepo struct {
	mu   sync.Mutex
	seq  int64
	list []*models.VerificationChallenge
}

func (r *fakeChallengeRepo) Issue(ch *models.VerificationChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, old := range r.list {
		if old.UserID == ch.UserID && old.Kind == ch.Kind && old.Status == models.ChallengeIssued {
			old.Status = models.ChallengeExpired
		}
	}
	r.seq++
	ch.ID = r.seq
	ch.Status = models.ChallengeIssued
	r.list = append(r.list, ch)
	return nil
}

func (r *fakeChallengeRepo) GetActive(userID int64, kind string) (*models.VerificationChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.list) - 1; i >= 0; i-- {
		ch := r.list[i]
		if ch.UserID == userID && ch.Kind == kind && ch.Status == models.ChallengeIssued {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fakeChallengeRepo) GetLatest(userID int64, kind string) (*models.VerificationChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.list) - 1; i >= 0; i-- {
		ch := r.list[i]
		if ch.UserID == userID && ch.Kind == kind {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fakeChallengeRepo) CountRecentSends(userID int64, kind string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ch := range r.list {
		if ch.UserID == userID && ch.Kind == kind && !ch.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeChallengeRepo) IncrementAttempts(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.list {
		if ch.ID == id {
			ch.Attempts++
			return ch.Attempts, nil
		}
	}
	return 0, fmt.Errorf("desafio %d inexistente", id)
}

func (r *fakeChallengeRepo) Transition(ch *models.VerificationChallenge, to, actor string) (*models.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.list {
		if stored.ID == ch.ID {
			if stored.Status != ch.Status {
				return nil, repositories.ErrNoTransition
			}
			from := stored.Status
			stored.Status = to
			if to == models.ChallengeVerified {
				now := time.Now()
				stored.VerifiedAt = &now
			}
			ch.Status = to
			return &models.WorkflowEvent{
				UserID:     stored.UserID,
				EntityType: models.EntityVerification,
				EntityID:   fmt.Sprintf("%d", stored.ID),
				FromStatus: from,
				ToStatus:   to,
				Actor:      actor,
			}, nil
		}
	}
	return nil, repositories.ErrNoTransition
}

func (r *fakeChallengeRepo) ExpireStaleIssued(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ch := range r.list {
		if ch.Status == models.ChallengeIssued && ch.ExpiresAt.Before(now) {
			ch.Status = models.ChallengeExpired
			n++
		}
	}
	return n, nil
}

type fakeUploadRepo struct {
	mu         sync.Mutex
	objects    map[string]*models.UploadObject
	nextScanAt map[string]time.Time
	events     []*models.WorkflowEvent
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{
		objects:    make(map[string]*models.UploadObject),
		nextScanAt: make(map[string]time.Time),
	}
}

func (r *fakeUploadRepo) Create(obj *models.UploadObject) (*models.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	obj.Status = models.UploadPresigned
	obj.CreatedAt = now
	obj.UpdatedAt = now
	r.objects[obj.ObjectKey] = obj
	ev := &models.WorkflowEvent{
		UserID:     obj.UserID,
		EntityType: models.EntityUpload,
		EntityID:   obj.ObjectKey,
		ToStatus:   models.UploadPresigned,
		Actor:      "user",
	}
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *fakeUploadRepo) GetByKey(key string) (*models.UploadObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects[key], nil
}

func (r *fakeUploadRepo) GetByScanJob(jobID string) (*models.UploadObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, obj := range r.objects {
		if obj.ScanJobID != "" && obj.ScanJobID == jobID {
			return obj, nil
		}
	}
	return nil, nil
}

func (r *fakeUploadRepo) Transition(key, from, to, actor string, payload []byte) (*models.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[key]
	if !ok || obj.Status != from {
		return nil, repositories.ErrNoTransition
	}
	obj.Status = to
	obj.UpdatedAt = time.Now()
	ev := &models.WorkflowEvent{
		UserID:     obj.UserID,
		EntityType: models.EntityUpload,
		EntityID:   key,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Payload:    payload,
	}
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *fakeUploadRepo) SetScanJob(key, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if obj, ok := r.objects[key]; ok {
		obj.ScanJobID = jobID
	}
	return nil
}

func (r *fakeUploadRepo) IncrementScanAttempts(key string, nextScanAt time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[key]
	if !ok {
		return 0, fmt.Errorf("objeto %q inexistente", key)
	}
	obj.ScanAttempts++
	r.nextScanAt[key] = nextScanAt
	return obj.ScanAttempts, nil
}

func (r *fakeUploadRepo) ListScanRetryCandidates(now time.Time, maxAttempts, limit int) ([]*models.UploadObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UploadObject
	for key, obj := range r.objects {
		if obj.Status == models.UploadFailed && obj.ScanAttempts < maxAttempts && !r.nextScanAt[key].After(now) {
			out = append(out, obj)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// último evento de um entity (para inspecionar payloads)
func (r *fakeUploadRepo) lastEvent(key string) *models.WorkflowEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EntityID == key {
			return r.events[i]
		}
	}
	return nil
}

type fakeMarginRepo struct {
	mu      sync.Mutex
	seq     int64
	current map[int64]*models.MarginSnapshot
	history map[int64][]models.MarginHistoryEntry
}

func newFakeMarginRepo() *fakeMarginRepo {
	return &fakeMarginRepo{
		current: make(map[int64]*models.MarginSnapshot),
		history: make(map[int64][]models.MarginHistoryEntry),
	}
}

func (r *fakeMarginRepo) GetCurrent(userID int64) (*models.MarginSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[userID], nil
}

func (r *fakeMarginRepo) GetByID(id int64) (*models.MarginSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range r.current {
		if snap.ID == id {
			return snap, nil
		}
	}
	return nil, nil
}

func (r *fakeMarginRepo) History(userID int64, limit int) ([]models.MarginHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[userID]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (r *fakeMarginRepo) Swap(userID int64, next *models.MarginSnapshot, prevVersion int64) (*models.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current[userID]
	if prevVersion > 0 {
		if prev == nil || prev.Version != prevVersion {
			return nil, repositories.ErrNoTransition
		}
		r.history[userID] = append(r.history[userID], models.MarginHistoryEntry{
			Mes:   prev.AtualizadoEm.Format("2006-01"),
			Valor: prev.TotalDisponivel,
		})
	}
	r.seq++
	next.ID = r.seq
	next.UserID = userID
	next.Version = prevVersion + 1
	next.TotalDisponivel = next.Bruto - next.Utilizado
	if next.AtualizadoEm.IsZero() {
		next.AtualizadoEm = time.Now()
	}
	r.current[userID] = next
	return &models.WorkflowEvent{
		UserID:     userID,
		EntityType: models.EntityMargin,
		EntityID:   fmt.Sprintf("%d", userID),
		FromStatus: fmt.Sprintf("v%d", prevVersion),
		ToStatus:   fmt.Sprintf("v%d", next.Version),
		Actor:      "system:refresh",
	}, nil
}

type fakeSimRepo struct {
	mu     sync.Mutex
	sims   map[string]*models.Simulation
	events []*models.WorkflowEvent
}

func newFakeSimRepo() *fakeSimRepo {
	return &fakeSimRepo{sims: make(map[string]*models.Simulation)}
}

func (r *fakeSimRepo) Create(sim *models.Simulation) (*models.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	sim.Status = models.SimCriada
	sim.CreatedAt = now
	sim.UpdatedAt = now
	r.sims[sim.ID] = sim
	ev := &models.WorkflowEvent{
		UserID:     sim.UserID,
		EntityType: models.EntitySimulation,
		EntityID:   sim.ID,
		ToStatus:   models.SimCriada,
		Actor:      "user",
	}
	r.events = append(r.events, ev)
	return ev, nil
}

func (r *fakeSimRepo) GetByID(id string) (*models.Simulation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sims[id], nil
}

func (r *fakeSimRepo) ListActiveByUser(userID int64) ([]*models.Simulation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Simulation
	for _, sim := range r.sims {
		if sim.UserID == userID && !sim.Terminal() {
			out = append(out, sim)
		}
	}
	return out, nil
}

func (r *fakeSimRepo) ListActiveByDocument(objectKey string) ([]*models.Simulation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Simulation
	for _, sim := range r.sims {
		if sim.Terminal() {
			continue
		}
		for _, doc := range sim.Documentos {
			if doc == objectKey {
				out = append(out, sim)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeSimRepo) ListApprovedExpired(now time.Time, limit int) ([]*models.Simulation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Simulation
	for _, sim := range r.sims {
		if sim.Status == models.SimAprovada && sim.ExpiraEm != nil && sim.ExpiraEm.Before(now) {
			out = append(out, sim)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSimRepo) Transition(id, from, to string, upd repositories.SimulationUpdate, actor string) (*models.WorkflowEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sim, ok := r.sims[id]
	if !ok || sim.Status != from {
		return nil, repositories.ErrNoTransition
	}
	sim.Status = to
	if upd.Resultado != nil {
		sim.Resultado = upd.Resultado
	}
	if upd.Motivo != "" {
		sim.Motivo = upd.Motivo
	}
	if upd.ExpiraEm != nil {
		sim.ExpiraEm = upd.ExpiraEm
	}
	if upd.AceiteEm != nil {
		sim.AceiteEm = upd.AceiteEm
	}
	if upd.TermoPath != "" {
		sim.TermoPath = upd.TermoPath
	}
	sim.UpdatedAt = time.Now()

	var payload []byte
	if upd.Resultado != nil || upd.Motivo != "" {
		payload, _ = json.Marshal(map[string]interface{}{
			"resultado": upd.Resultado,
			"motivo":    upd.Motivo,
		})
	}
	ev := &models.WorkflowEvent{
		UserID:     sim.UserID,
		EntityType: models.EntitySimulation,
		EntityID:   id,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Payload:    payload,
	}
	r.events = append(r.events, ev)
	return ev, nil
}

// ===== gateways =====

type fakeSender struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (s *fakeSender) SendCode(to, channel, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes = append(s.codes, code)
	return nil
}

func (s *fakeSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return ""
	}
	return s.codes[len(s.codes)-1]
}

type fakeStorage struct {
	mu    sync.Mutex
	heads map[string]*utils.StorageHead
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{heads: make(map[string]*utils.StorageHead)}
}

func (s *fakeStorage) IssueWriteCapability(key, contentType string, size int64, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heads[key] = &utils.StorageHead{ContentType: contentType, Size: size}
	return "https://storage.test/" + key, nil
}

func (s *fakeStorage) HeadObject(key string) (*utils.StorageHead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads[key], nil
}

type fakeScanner struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (s *fakeScanner) Submit(objectKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	job := "job-" + objectKey
	s.jobs = append(s.jobs, job)
	return job, nil
}

type fakeAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (a *fakeAlerter) Alert(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, text)
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.msgs)
}

type fakeScoring struct {
	mu       sync.Mutex
	decision *utils.ScoreDecision
	err      error
	failures int // erros antes de responder (testa retry)
	calls    int
}

func (s *fakeScoring) Score(ctx context.Context, produto string, parametros json.RawMessage, snapshot *models.MarginSnapshot) (*utils.ScoreDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls <= s.failures {
		return nil, fmt.Errorf("motor de score fora do ar")
	}
	return s.decision, nil
}

type fakeMarginSource struct {
	mu      sync.Mutex
	figures *utils.MarginFigures
	err     error
}

func (s *fakeMarginSource) FetchMargin(ctx context.Context, userID int64, cpf string) (*utils.MarginFigures, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.figures, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	approved []string
	accepted []string
}

func (n *fakeNotifier) SendOfferApproved(user *models.User, sim *models.Simulation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approved = append(n.approved, sim.ID)
}

func (n *fakeNotifier) SendAcceptanceConfirmed(user *models.User, sim *models.Simulation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted = append(n.accepted, sim.ID)
}

type fakeTerms struct{}

func (fakeTerms) GenerateAcceptanceTerm(sim *models.Simulation, user *models.User) (string, error) {
	return "/termo_" + sim.ID + ".pdf", nil
}
