package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"lifedigital/internal/models"
)

// TermGenerator — gerador do termo de aceite em PDF.
type TermGenerator struct {
	RootDir  string // raiz de armazenamento, ex. "./files"
	FontPath string // caminho do TTF, ex. "assets/fonts/DejaVuSans.ttf"
	fontName string
}

func NewTermGenerator(rootDir, fontPath string) *TermGenerator {
	return &TermGenerator{
		RootDir:  filepath.Clean(rootDir),
		FontPath: fontPath,
		fontName: "DejaVu",
	}
}

// GenerateAcceptanceTerm — termo de aceite da proposta de crédito; devolve o
// caminho relativo do arquivo gerado.
func (g *TermGenerator) GenerateAcceptanceTerm(sim *models.Simulation, user *models.User) (string, error) {
	filename := fmt.Sprintf("termo_%s.pdf", sim.ID)
	absPath, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Termo de Aceite %s", sim.ID), false)
	pdf.SetAuthor("Life Digital", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	g.addUTF8Font(pdf)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "TERMO DE ACEITE", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 12)
	sub := fmt.Sprintf("Simulação %s  •  %s", sim.ID, time.Now().Format("02/01/2006"))
	pdf.CellFormat(0, 7, sub, "", 1, "C", false, 0, "")
	g.hr(pdf)

	pdf.Ln(3)

	g.sectionTitle(pdf, "Contratante")
	name := ""
	cpf := ""
	if user != nil {
		name = user.Name
		cpf = user.CPF
	}
	g.kvLine(pdf, "Nome", name)
	g.kvLine(pdf, "CPF", cpf)
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Condições da operação")
	g.kvLine(pdf, "Produto", sim.Produto)
	if sim.Resultado != nil {
		g.kvLine(pdf, "Parcela", fmt.Sprintf("R$ %.2f", sim.Resultado.Parcela))
		g.kvLine(pdf, "Total", fmt.Sprintf("R$ %.2f", sim.Resultado.Total))
		g.kvLine(pdf, "CET", fmt.Sprintf("%.2f%% a.m.", sim.Resultado.CET*100))
	}
	pdf.Ln(1)

	pdf.SetFont(g.fontName, "", 11)
	intro := "O contratante declara ter lido e compreendido as condições da operação de crédito acima, " +
		"incluindo o Custo Efetivo Total, e manifesta seu aceite de forma livre e inequívoca por meio eletrônico."
	pdf.MultiCell(0, 6, intro, "", "L", false)
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Condições gerais")
	pdf.SetFont(g.fontName, "", 11)
	terms := []string{
		"1. O aceite eletrônico registrado neste termo tem validade jurídica para todos os efeitos.",
		"2. Os valores de parcela e CET são os vigentes na data da aprovação da proposta.",
		"3. O desembolso depende da conferência final dos documentos apresentados.",
		"4. Eventuais divergências devem ser comunicadas ao suporte antes do desembolso.",
	}
	for _, t := range terms {
		pdf.MultiCell(0, 6, t, "", "L", false)
	}
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Registro do aceite")
	pdf.SetFont(g.fontName, "", 11)
	aceite := time.Now()
	if sim.AceiteEm != nil {
		aceite = *sim.AceiteEm
	}
	g.kvLine(pdf, "Data e hora", aceite.Format("02/01/2006 15:04:05"))
	g.kvLine(pdf, "Identificador", sim.ID)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Pág. %d/{nb}", pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(filepath.Base(absPath)), nil
}

// ===== helpers =====

func (g *TermGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *TermGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *TermGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *TermGenerator) ensureTarget(filename string) (string, error) {
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("create files dir: %w", err)
	}
	filename = filepath.Base(filename)
	return filepath.Join(g.RootDir, filename), nil
}

func (g *TermGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	// AddUTF8Font recebe o caminho do TTF
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}
