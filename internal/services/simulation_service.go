package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lifedigital/internal/models"
	"lifedigital/internal/repositories"
	"lifedigital/internal/utils"
)

const (
	defaultAcceptanceWindow = 72 * time.Hour
	maxScoreAttempts        = 3
	scoreRetryBase          = time.Second
)

// ProductSpec — schema declarativo por produto: parâmetros obrigatórios,
// kinds de upload exigidos e verificações que travam a aprovação.
type ProductSpec struct {
	RequiredParams        []string
	RequiredUploadKinds   []string
	RequiredVerifications []string
	AcceptanceWindow      time.Duration
}

var productCatalog = map[string]ProductSpec{
	"CONSIGNADO": {
		RequiredParams:        []string{"valor", "prazo"},
		RequiredUploadKinds:   []string{"contracheque"},
		RequiredVerifications: []string{models.VerificationKindCPF, models.VerificationKindPhone},
		AcceptanceWindow:      defaultAcceptanceWindow,
	},
	"PESSOAL": {
		RequiredParams:        []string{"valor", "prazo"},
		RequiredVerifications: []string{models.VerificationKindCPF},
		AcceptanceWindow:      48 * time.Hour,
	},
}

type ScoringPort interface {
	Score(ctx context.Context, produto string, parametros json.RawMessage, snapshot *models.MarginSnapshot) (*utils.ScoreDecision, error)
}

// Notifier — e-mails transacionais; pode ser nil.
type Notifier interface {
	SendOfferApproved(user *models.User, sim *models.Simulation)
	SendAcceptanceConfirmed(user *models.User, sim *models.Simulation)
}

// TermGenerator — PDF do termo de aceite; pode ser nil.
type TermGenerator interface {
	GenerateAcceptanceTerm(sim *models.Simulation, user *models.User) (string, error)
}

// SimulationService — orquestrador do fluxo: fixa a margem na criação,
// dispara o score assíncrono e reavalia a prontidão a cada WorkflowEvent
// dos colaboradores (nunca por polling).
type SimulationService struct {
	Sims    repositories.SimulationRepository
	Margins repositories.MarginRepository
	Uploads repositories.UploadRepository
	Users   repositories.UserRepository
	Margin  *MarginService
	Scoring ScoringPort
	Mailer  Notifier
	Terms   TermGenerator
}

func NewSimulationService(
	sims repositories.SimulationRepository,
	margins repositories.MarginRepository,
	uploads repositories.UploadRepository,
	users repositories.UserRepository,
	margin *MarginService,
	scoring ScoringPort,
	mailer Notifier,
	terms TermGenerator,
) *SimulationService {
	return &SimulationService{
		Sims:    sims,
		Margins: margins,
		Uploads: uploads,
		Users:   users,
		Margin:  margin,
		Scoring: scoring,
		Mailer:  mailer,
		Terms:   terms,
	}
}

// Create — valida parâmetros contra o schema do produto, fixa o snapshot de
// margem corrente e dispara o score. Retorna imediatamente em CRIADA.
func (s *SimulationService) Create(ctx context.Context, userID int64, produto string, parametros json.RawMessage) (*models.Simulation, error) {
	spec, ok := productCatalog[produto]
	if !ok {
		return nil, fmt.Errorf("%w: produto %q", ErrValidation, produto)
	}

	var params map[string]interface{}
	if err := json.Unmarshal(parametros, &params); err != nil {
		return nil, fmt.Errorf("%w: parametros não é um objeto JSON", ErrValidation)
	}
	for _, field := range spec.RequiredParams {
		if _, ok := params[field]; !ok {
			return nil, fmt.Errorf("%w: parâmetro obrigatório %q ausente", ErrValidation, field)
		}
	}

	documentos, err := s.collectDocuments(userID, spec, params)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.Margin.GetCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, ErrSourceUnavailable
	}

	id, err := utils.NewSimulationID()
	if err != nil {
		return nil, err
	}
	sim := &models.Simulation{
		ID:               id,
		UserID:           userID,
		Produto:          produto,
		Parametros:       parametros,
		MarginSnapshotID: snapshot.ID,
		Documentos:       documentos,
	}
	if _, err := s.Sims.Create(sim); err != nil {
		return nil, err
	}
	log.Printf("[sim][create] ok id=%s produto=%s user_id=%d margem_v=%d", id, produto, userID, snapshot.Version)

	// Score assíncrono: a requisição não espera o colaborador externo.
	go s.score(context.Background(), sim, snapshot)

	return sim, nil
}

// collectDocuments — valida os object keys referenciados e a cobertura dos
// kinds exigidos pelo produto.
func (s *SimulationService) collectDocuments(userID int64, spec ProductSpec, params map[string]interface{}) ([]string, error) {
	var documentos []string
	if raw, ok := params["documentos"]; ok {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: documentos deve ser uma lista de object keys", ErrValidation)
		}
		for _, item := range list {
			key, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: object key inválida", ErrValidation)
			}
			documentos = append(documentos, key)
		}
	}

	kinds := make(map[string]bool)
	for _, key := range documentos {
		obj, err := s.Uploads.GetByKey(key)
		if err != nil {
			return nil, err
		}
		if obj == nil || obj.UserID != userID {
			return nil, fmt.Errorf("%w: documento %q não encontrado", ErrValidation, key)
		}
		if obj.Status == models.UploadInfected {
			return nil, fmt.Errorf("%w: documento %q em quarentena", ErrValidation, key)
		}
		kinds[obj.Kind] = true
	}
	for _, kind := range spec.RequiredUploadKinds {
		if !kinds[kind] {
			return nil, fmt.Errorf("%w: produto exige upload de %q", ErrValidation, kind)
		}
	}
	return documentos, nil
}

// score — invoca o motor externo com retries limitados; o resultado move a
// simulação para EM_ANALISE ou direto para um terminal.
func (s *SimulationService) score(ctx context.Context, sim *models.Simulation, snapshot *models.MarginSnapshot) {
	var decision *utils.ScoreDecision
	var err error
	for attempt := 1; attempt <= maxScoreAttempts; attempt++ {
		decision, err = s.Scoring.Score(ctx, sim.Produto, sim.Parametros, snapshot)
		if err == nil {
			break
		}
		log.Printf("[sim][score] tentativa %d falhou id=%s err=%v", attempt, sim.ID, err)
		if attempt < maxScoreAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(scoreRetryBase << (attempt - 1)):
			}
		}
	}
	if err != nil {
		// Esgotou: estado explícito, nunca um drop silencioso.
		s.transition(sim.ID, models.SimCriada, models.SimRejeitada, repositories.SimulationUpdate{
			Motivo: models.ReasonScoreIndisponivel,
		}, "system:score")
		return
	}

	if !decision.Approved {
		motivo := decision.Motivo
		if motivo == "" {
			motivo = models.ReasonScoreReprovado
		}
		s.transition(sim.ID, models.SimCriada, models.SimReprovada, repositories.SimulationUpdate{Motivo: motivo}, "system:score")
		return
	}

	// Margem é comparada em centavos contra a parcela calculada.
	if decision.Resultado != nil && int64(decision.Resultado.Parcela*100) > snapshot.TotalDisponivel {
		s.transition(sim.ID, models.SimCriada, models.SimReprovada, repositories.SimulationUpdate{
			Resultado: decision.Resultado,
			Motivo:    models.ReasonMargemInsuficiente,
		}, "system:score")
		return
	}

	if s.transition(sim.ID, models.SimCriada, models.SimEmAnalise, repositories.SimulationUpdate{
		Resultado: decision.Resultado,
	}, "system:score") {
		s.evaluateReadiness(sim.ID)
	}
}

func (s *SimulationService) transition(id, from, to string, upd repositories.SimulationUpdate, actor string) bool {
	if !canTransition(from, to, SimulationTransitions) {
		log.Printf("[sim][transition] ilegal id=%s %s->%s", id, from, to)
		return false
	}
	if _, err := s.Sims.Transition(id, from, to, upd, actor); err != nil {
		if err != repositories.ErrNoTransition {
			log.Printf("[sim][transition] falhou id=%s %s->%s err=%v", id, from, to, err)
		}
		return false
	}
	log.Printf("[sim][transition] id=%s %s->%s", id, from, to)
	return true
}

// Get — estado corrente, com expiração preguiçosa da janela de aceite.
// Nunca bloqueia em trabalho assíncrono pendente.
func (s *SimulationService) Get(simID string, userID int64) (*models.Simulation, error) {
	sim, err := s.Sims.GetByID(simID)
	if err != nil {
		return nil, err
	}
	if sim == nil || sim.UserID != userID {
		return nil, ErrNotFound
	}
	if s.lazyExpire(sim) {
		return s.Sims.GetByID(simID)
	}
	return sim, nil
}

func (s *SimulationService) lazyExpire(sim *models.Simulation) bool {
	if sim.Status == models.SimAprovada && sim.ExpiraEm != nil && time.Now().After(*sim.ExpiraEm) {
		return s.transition(sim.ID, models.SimAprovada, models.SimExpirada, repositories.SimulationUpdate{}, "system:window")
	}
	return false
}

// Accept — válido só a partir de APROVADA; idempotente quando o aceite já foi
// registrado.
func (s *SimulationService) Accept(simID string, userID int64) (*models.Simulation, error) {
	sim, err := s.Sims.GetByID(simID)
	if err != nil {
		return nil, err
	}
	if sim == nil || sim.UserID != userID {
		return nil, ErrNotFound
	}
	if sim.Status == models.SimAceiteRecebido {
		return sim, nil
	}
	if s.lazyExpire(sim) {
		return nil, ErrInvalidState
	}
	if sim.Status != models.SimAprovada {
		return nil, ErrInvalidState
	}

	user, err := s.Users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	var termoPath string
	if s.Terms != nil {
		if termoPath, err = s.Terms.GenerateAcceptanceTerm(sim, user); err != nil {
			log.Printf("[sim][accept] termo falhou id=%s err=%v", simID, err)
			termoPath = ""
		}
	}

	now := time.Now()
	if _, err := s.Sims.Transition(simID, models.SimAprovada, models.SimAceiteRecebido, repositories.SimulationUpdate{
		AceiteEm:  &now,
		TermoPath: termoPath,
	}, "user"); err != nil {
		if err == repositories.ErrNoTransition {
			// corrida: relê e decide pelo estado final
			fresh, ferr := s.Sims.GetByID(simID)
			if ferr == nil && fresh != nil && fresh.Status == models.SimAceiteRecebido {
				return fresh, nil
			}
			return nil, ErrInvalidState
		}
		return nil, err
	}

	if s.Mailer != nil && user != nil {
		s.Mailer.SendAcceptanceConfirmed(user, sim)
	}
	log.Printf("[sim][accept] ok id=%s user_id=%d", simID, userID)
	return s.Sims.GetByID(simID)
}

// OnWorkflowEvent — assinante do despachante do outbox: cada evento dos
// colaboradores reavalia a prontidão ou força rejeição.
func (s *SimulationService) OnWorkflowEvent(ev *models.WorkflowEvent) error {
	switch ev.EntityType {
	case models.EntityUpload:
		return s.onUploadEvent(ev)
	case models.EntityVerification:
		return s.onVerificationEvent(ev)
	case models.EntitySimulation:
		if ev.ToStatus == models.SimEmAnalise {
			s.evaluateReadiness(ev.EntityID)
		}
	}
	return nil
}

func (s *SimulationService) onUploadEvent(ev *models.WorkflowEvent) error {
	switch ev.ToStatus {
	case models.UploadClean:
		sims, err := s.Sims.ListActiveByDocument(ev.EntityID)
		if err != nil {
			return err
		}
		for _, sim := range sims {
			s.evaluateReadiness(sim.ID)
		}
	case models.UploadInfected:
		return s.rejectByDocument(ev.EntityID, models.ReasonInfectedDocument)
	case models.UploadFailed:
		var payload struct {
			Permanent bool `json:"permanent"`
		}
		if len(ev.Payload) > 0 {
			_ = json.Unmarshal(ev.Payload, &payload)
		}
		if payload.Permanent {
			return s.rejectByDocument(ev.EntityID, models.ReasonScanFailed)
		}
	}
	return nil
}

func (s *SimulationService) rejectByDocument(objectKey, motivo string) error {
	sims, err := s.Sims.ListActiveByDocument(objectKey)
	if err != nil {
		return err
	}
	for _, sim := range sims {
		s.transition(sim.ID, sim.Status, models.SimRejeitada, repositories.SimulationUpdate{Motivo: motivo}, "system:scan")
	}
	return nil
}

func (s *SimulationService) onVerificationEvent(ev *models.WorkflowEvent) error {
	switch ev.ToStatus {
	case models.ChallengeVerified:
		sims, err := s.Sims.ListActiveByUser(ev.UserID)
		if err != nil {
			return err
		}
		for _, sim := range sims {
			s.evaluateReadiness(sim.ID)
		}
	case models.ChallengeExhausted:
		sims, err := s.Sims.ListActiveByUser(ev.UserID)
		if err != nil {
			return err
		}
		for _, sim := range sims {
			s.transition(sim.ID, sim.Status, models.SimRejeitada, repositories.SimulationUpdate{
				Motivo: models.ReasonVerificationFailed,
			}, "system:verify")
		}
	}
	return nil
}

// evaluateReadiness — EM_ANALISE -> APROVADA quando score, verificações e
// uploads exigidos estão todos satisfeitos. Upload ainda em SCANNING segura a
// simulação em EM_ANALISE.
func (s *SimulationService) evaluateReadiness(simID string) {
	sim, err := s.Sims.GetByID(simID)
	if err != nil || sim == nil {
		return
	}
	if sim.Status != models.SimEmAnalise || sim.Resultado == nil {
		return
	}
	spec := productCatalog[sim.Produto]

	user, err := s.Users.GetByID(sim.UserID)
	if err != nil || user == nil {
		return
	}
	for _, kind := range spec.RequiredVerifications {
		switch kind {
		case models.VerificationKindCPF:
			if !user.CPFVerified {
				return
			}
		case models.VerificationKindPhone:
			if !user.WhatsappVerified {
				return
			}
		}
	}

	for _, key := range sim.Documentos {
		obj, err := s.Uploads.GetByKey(key)
		if err != nil || obj == nil {
			return
		}
		switch obj.Status {
		case models.UploadClean:
			// ok
		case models.UploadInfected:
			s.transition(simID, sim.Status, models.SimRejeitada, repositories.SimulationUpdate{
				Motivo: models.ReasonInfectedDocument,
			}, "system:scan")
			return
		default:
			// ainda não resolvido; o próximo evento reavalia
			return
		}
	}

	window := spec.AcceptanceWindow
	if window <= 0 {
		window = defaultAcceptanceWindow
	}
	expiraEm := time.Now().Add(window)
	if s.transition(simID, models.SimEmAnalise, models.SimAprovada, repositories.SimulationUpdate{
		ExpiraEm: &expiraEm,
	}, "system:readiness") {
		if s.Mailer != nil {
			s.Mailer.SendOfferApproved(user, sim)
		}
	}
}

// RunAcceptanceSweeper — varredura de janelas de aceite vencidas; complementa
// a expiração preguiçosa do Get/Accept.
func (s *SimulationService) RunAcceptanceSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sims, err := s.Sims.ListApprovedExpired(time.Now(), 100)
			if err != nil {
				log.Printf("[sim][sweep] lista falhou: %v", err)
				continue
			}
			for _, sim := range sims {
				s.transition(sim.ID, models.SimAprovada, models.SimExpirada, repositories.SimulationUpdate{}, "system:window")
			}
		}
	}
}
