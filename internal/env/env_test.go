package env

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOverridesOrderAndExpansion(t *testing.T) {
	e := New().WithBase([]string{"HOME=/home/bot", "PATH=/usr/bin"})
	e.Set("A", "1")
	e.Set("B", "${A}-x")
	got := e.Overrides([]string{"A=top", "PATH=${PATH}:${HOME}/bin", "PASS=pa$word", "LEFT=${NOPE}"})
	want := []string{"A=top", "B=top-x", "LEFT=${NOPE}", "PASS=pa$word", "PATH=/usr/bin:/home/bot/bin"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestOverridesSinglePass(t *testing.T) {
	e := New().WithBase(nil)
	got := e.Overrides([]string{"X=${Y}", "Y=${X}"})
	want := []string{"X=${X}", "Y=${Y}"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bot.env")
	data := "# creds\nexport TOKEN=\"abc def\"\n\nQUOTE='x'\nnoequals\n=skip\nPLAIN = v \n"
	if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	e := New().WithBase(nil)
	if err := e.LoadFile(p); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Var{"TOKEN": "abc def", "QUOTE": "x", "PLAIN": "v"}
	if !reflect.DeepEqual(e.Var, want) {
		t.Fatalf("got %v want %v", e.Var, want)
	}
	if err := e.LoadFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
