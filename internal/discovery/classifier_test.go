package discovery

import "testing"

func TestClassify(t *testing.T) {
	classifier, err := NewClassifier("https://example.com")
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	tests := []struct {
		url  string
		want Priority
	}{
		{"https://example.com/conteudos/artigo-1", PriorityHigh},
		{"https://example.com/ead", PriorityHigh},
		{"https://example.com/servicos/calculadora", PriorityHigh},
		{"https://example.com/sobre-nos", PriorityMedium},
		{"https://example.com/perguntas-frequentes", PriorityMedium},
		{"https://example.com/arquivos/relatorio.pdf", PriorityFile},
		{"https://example.com/download/pacote.zip", PriorityFile},
		{"https://example.com/qualquer-pagina", PriorityLow},
		{"https://example.com/user/logout", PrioritySkip},
		{"https://example.com/sair", PrioritySkip},
		{"https://example.com/page?utm_source=news", PrioritySkip},
		{"https://other-site.com/conteudos", PrioritySkip},
		{"mailto:alguem@example.com", PrioritySkip},
		{"tel:+5511999999999", PrioritySkip},
		{"", PrioritySkip},
		{"https://sub.example.com/pagina", PriorityLow},
	}

	for _, tt := range tests {
		if got := classifier.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestPriorityString(t *testing.T) {
	if PriorityFile.String() != "file" || PrioritySkip.String() != "skip" {
		t.Error("unexpected priority names")
	}
}
