package normalize

import (
	"reflect"
	"strings"
	"testing"
)

func TestFoldText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Incluye GASTOS de comunidad", "incluye gastos de comunidad"},
		{"Gastos INCLUÍDOS", "gastos incluidos"},
		{"áéíóúüñç", "aeiouunc"},
		{"ÁÉÍÓÚÜÑÇ", "aeiouunc"},
		{"Pingüino en Españá", "pinguino en espana"},
		{"sin cambios", "sin cambios"},
		{"comunidad incluida y gastos de agua: s\u00ed, tambi\u00e9n", "comunidad incluida y gastos de agua: si, tambien"},
		{"tambie\u0301n", "tambien"},
	}

	for _, tt := range tests {
		result := FoldText(tt.input)
		if result != tt.expected {
			t.Errorf("FoldText(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestCleanText(t *testing.T) {
	input := "  450\u00A0€/mes \n\t  "
	result := CleanText(input)

	if strings.Contains(result, "\u00A0") {
		t.Errorf("NBSP not replaced")
	}
	if result != "450 €/mes" {
		t.Errorf("CleanText(%q) = %q, want %q", input, result, "450 €/mes")
	}
}

func TestLocality(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"\nHabitación en Calle Mayor, Centro, Madrid\n", "Habitación en Calle Mayor Centro"},
		{"Habitación en Sol", "Habitación en Sol"},
		{"  Piso, Chamberí  ", "Piso Chamberí"},
		{"", ""},
	}

	for _, tt := range tests {
		result := Locality(tt.input)
		if result != tt.expected {
			t.Errorf("Locality(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestKeywordSet(t *testing.T) {
	set := NewKeywordSet([]string{"Gastos incluidos", "gastos incluidos", "  ", "suministros", "Agua y Luz"})

	expected := []string{"gastos incluidos", "suministros", "agua y luz"}
	if !reflect.DeepEqual(set.Words(), expected) {
		t.Errorf("Words() = %v, want %v", set.Words(), expected)
	}

	if w, ok := set.Match(FoldText("Precio con GASTOS INCLUÍDOS en el alquiler")); !ok || w != "gastos incluidos" {
		t.Errorf("Match() = %q, %v, want %q, true", w, ok, "gastos incluidos")
	}

	// Подстрока внутри слова тоже считается совпадением
	if _, ok := set.Match("todos los suministrosincluidos"); !ok {
		t.Errorf("Match() should accept substring inside a longer word")
	}

	if _, ok := set.Match("nada que ver"); ok {
		t.Errorf("Match() should not match unrelated text")
	}
}

func TestKeywordSetEmpty(t *testing.T) {
	var nilSet *KeywordSet
	if nilSet.Len() != 0 {
		t.Errorf("nil set Len() = %d, want 0", nilSet.Len())
	}
	if _, ok := nilSet.Match("gastos"); ok {
		t.Errorf("nil set should never match")
	}

	empty := NewKeywordSet(nil)
	if _, ok := empty.Match("gastos"); ok {
		t.Errorf("empty set should never match")
	}
}
