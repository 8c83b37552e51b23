package services

import (
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"lifedigital/internal/models"
)

type EmailService interface {
	SendOfferApproved(user *models.User, sim *models.Simulation)
	SendAcceptanceConfirmed(user *models.User, sim *models.Simulation)
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

// SendOfferApproved — notificação de proposta aprovada; falha de SMTP não
// interrompe o fluxo, só registra.
func (s *emailService) SendOfferApproved(user *models.User, sim *models.Simulation) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Sua simulação foi aprovada!")

	body := fmt.Sprintf(`
		<h2>Boa notícia, %s!</h2>
		<p>Sua simulação de crédito <strong>%s</strong> foi aprovada.</p>
		<p>Parcela: <strong>R$ %.2f</strong> | CET: <strong>%.2f%% a.m.</strong></p>
		<p>Acesse o aplicativo para aceitar a proposta antes do vencimento da oferta.</p>
		<p>Equipe Lifedigital</p>
	`, user.Name, sim.ID, sim.Resultado.Parcela, sim.Resultado.CET*100)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Printf("[email][offer] envio falhou to=%s sim=%s err=%v", user.Email, sim.ID, err)
	}
}

func (s *emailService) SendAcceptanceConfirmed(user *models.User, sim *models.Simulation) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Aceite registrado")

	body := fmt.Sprintf(`
		<h3>Aceite confirmado</h3>
		<p>Registramos o seu aceite para a simulação <strong>%s</strong>.</p>
		<p>O termo de aceite está disponível no aplicativo.</p>
		<p>Se você não reconhece esta operação, entre em contato com o suporte imediatamente.</p>
	`, sim.ID)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Printf("[email][aceite] envio falhou to=%s sim=%s err=%v", user.Email, sim.ID, err)
	}
}
