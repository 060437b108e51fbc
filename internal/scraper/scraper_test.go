package scraper

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

const loginPageHTML = `<html><body>
<form action="/login" method="post">
  <input placeholder="E-mail ou CPF *" name="mail">
  <input type="password" placeholder="Senha *" name="pass">
  <input type="submit" value="Enviar">
</form>
</body></html>`

const authenticatedHTML = `<html><body>
<nav class="user-menu"><a href="/user/logout">Sair</a></nav>
<main><h1>Bem-vindo</h1><p>Conteúdo exclusivo para membros.</p></main>
</body></html>`

// Logged-in page whose footer mentions login; must not be classified
// as the login page.
const authenticatedWithFooterHTML = `<html><body>
<a href="/sair">Sair</a>
<footer><a href="/login">login</a></footer>
</body></html>`

func TestIsLoginPage(t *testing.T) {
	d := NewLoginPageDetector()

	tests := []struct {
		name string
		html string
		want bool
	}{
		{"login form", loginPageHTML, true},
		{"authenticated", authenticatedHTML, false},
		{"authenticated with footer login link", authenticatedWithFooterHTML, false},
		{"text-only login hint", `<html><body><p>Informe sua senha para continuar</p></body></html>`, true},
		{"neutral page", `<html><body><p>Receitas de nutrição</p></body></html>`, false},
	}

	for _, tt := range tests {
		got, err := d.IsLoginPage(tt.html)
		if err != nil {
			t.Fatalf("%s: IsLoginPage failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: IsLoginPage = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsLoginText(t *testing.T) {
	d := NewLoginPageDetector()

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"login markdown", "Informe seu e-mail ou CPF e sua senha.", true},
		{"authenticated markdown", "# Artigo\n\nConteúdo do plano. [Sair](/sair)", false},
		{"authenticated beats login wording", "Minha conta. Alterar senha.", false},
		{"neutral markdown", "# Receitas\n\nConteúdo nutricional.", false},
	}

	for _, tt := range tests {
		if got := d.IsLoginText(tt.text); got != tt.want {
			t.Errorf("%s: IsLoginText = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExtractLinks(t *testing.T) {
	base, _ := url.Parse("https://example.org/conteudos/")
	html := `<html><body>
	  <a href="/ead/curso-1">Curso</a>
	  <a href="artigo-2">Artigo</a>
	  <a href="/ead/curso-1">Curso de novo</a>
	  <a href="https://example.org/receitas#section">Receitas</a>
	  <a href="https://outro-site.test/pagina">Externo</a>
	  <a href="mailto:contato@example.org">Contato</a>
	  <a href="#topo">Topo</a>
	</body></html>`

	links, err := ExtractLinks(html, base)
	if err != nil {
		t.Fatalf("ExtractLinks failed: %v", err)
	}

	expected := []string{
		"https://example.org/ead/curso-1",
		"https://example.org/conteudos/artigo-2",
		"https://example.org/receitas",
	}
	if len(links) != len(expected) {
		t.Fatalf("expected %d links, got %d: %v", len(expected), len(links), links)
	}
	for i, want := range expected {
		if links[i] != want {
			t.Errorf("link[%d] = %q, want %q", i, links[i], want)
		}
	}
}

func TestTrySelectors(t *testing.T) {
	html := `<html><body>
	  <div class="empty"></div>
	  <a class="next" href="/page/2">próxima</a>
	  <img class="thumb" src="/img.png">
	</body></html>`

	doc := mustParse(t, html)

	if got := TrySelectors(doc, []string{".missing", ".empty", ".next"}); got != "próxima" {
		t.Errorf("trySelectors text = %q", got)
	}
	if got := TrySelectors(doc, []string{".thumb"}); got != "/img.png" {
		t.Errorf("trySelectors src = %q", got)
	}
	if got := TrySelectors(doc, []string{".missing"}); got != "" {
		t.Errorf("trySelectors miss = %q", got)
	}
}
