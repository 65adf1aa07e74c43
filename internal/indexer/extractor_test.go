package indexer

import (
	"context"
	"testing"

	"github.com/dpolishuk/codesense/internal/models"
)

func extract(t *testing.T, code, language, path string) []models.RawEntity {
	t.Helper()
	extractor := NewExtractor()
	defer extractor.Close()

	entities, err := extractor.Extract(context.Background(), []byte(code), language, path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return entities
}

func byName(entities []models.RawEntity, name string) *models.RawEntity {
	for i := range entities {
		if entities[i].Name == name {
			return &entities[i]
		}
	}
	return nil
}

func TestExtractGo(t *testing.T) {
	goCode := `package main

// Add adds two numbers together
func Add(a, b int) int {
	return a + b
}

// Calculator is a simple calculator
type Calculator struct {
	result int
}

type ID string

// Multiply multiplies two numbers
func (c *Calculator) Multiply(a, b int) int {
	result := a * b
	c.result = result
	return result
}

func (r Remote) Ping() error { return nil }
`

	entities := extract(t, goCode, "go", "test.go")
	if len(entities) != 3 {
		t.Fatalf("Expected 3 entities (Add, Calculator, Remote), got %d", len(entities))
	}

	add := byName(entities, "Add")
	if add == nil {
		t.Fatal("Add not found")
	}
	if add.Kind != "function" {
		t.Errorf("Expected kind 'function', got '%s'", add.Kind)
	}
	if add.StartLine != 4 {
		t.Errorf("Expected start line 4, got %d", add.StartLine)
	}
	if add.FilePath != "test.go" {
		t.Errorf("Expected file path 'test.go', got '%s'", add.FilePath)
	}

	calc := byName(entities, "Calculator")
	if calc == nil {
		t.Fatal("Calculator not found")
	}
	if calc.Kind != "class" {
		t.Errorf("Expected kind 'class', got '%s'", calc.Kind)
	}
	if len(calc.Methods) != 1 || calc.Methods[0].Name != "Multiply" {
		t.Fatalf("Expected Multiply attached to Calculator, got %+v", calc.Methods)
	}
	m := calc.Methods[0]
	if len(m.Params) != 1 || m.Params[0] != "a, b int" {
		t.Errorf("Expected params [a, b int], got %v", m.Params)
	}
	if m.ReturnType != "int" {
		t.Errorf("Expected return type int, got %q", m.ReturnType)
	}

	if byName(entities, "ID") != nil {
		t.Error("non-struct type should not be extracted")
	}
	remote := byName(entities, "Remote")
	if remote == nil || len(remote.Methods) != 1 || remote.SourceText != "" {
		t.Errorf("Expected bare Remote receiver with one method, got %+v", remote)
	}
}

func TestExtractPython(t *testing.T) {
	pyCode := `class Calculator:
    """A simple calculator."""

    def __init__(self):
        self.result = 0

    @staticmethod
    def add(a, b) -> int:
        return a + b

def greet(name):
    def shout(s):
        return s.upper()
    return shout(name)
`

	entities := extract(t, pyCode, "python", "calc.py")
	if len(entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(entities))
	}

	calc := byName(entities, "Calculator")
	if calc == nil || calc.Kind != "class" {
		t.Fatalf("Expected class Calculator, got %+v", calc)
	}
	if len(calc.Methods) != 2 {
		t.Fatalf("Expected 2 methods, got %d", len(calc.Methods))
	}
	if calc.Methods[1].Name != "add" || calc.Methods[1].ReturnType != "int" {
		t.Errorf("Expected add -> int, got %+v", calc.Methods[1])
	}

	greet := byName(entities, "greet")
	if greet == nil || len(greet.Children) != 1 || greet.Children[0].Name != "shout" {
		t.Errorf("Expected nested shout under greet, got %+v", greet)
	}
}

func TestExtractJavaScriptComponents(t *testing.T) {
	jsCode := `import React from 'react';

export function Button({ label, onClick, size = 'md' }) {
  return <button onClick={onClick}>{label}</button>;
}

export const Card = ({ title }) => (
  <div className="card">{title}</div>
);

const helper = (x) => x * 2;

function formatPrice(value) {
  return '$' + value.toFixed(2);
}

class Cart extends React.Component {
  total() { return 1; }
  render() { return <div>{this.total()}</div>; }
}

class Store {
  load() {}
}
`

	entities := extract(t, jsCode, "javascript", "ui.jsx")
	if len(entities) != 6 {
		t.Fatalf("Expected 6 entities, got %d", len(entities))
	}

	tests := []struct {
		name string
		kind string
	}{
		{"Button", "component"},
		{"Card", "component"},
		{"helper", "function"},
		{"formatPrice", "function"},
		{"Cart", "component"},
		{"Store", "class"},
	}
	for _, tt := range tests {
		e := byName(entities, tt.name)
		if e == nil {
			t.Errorf("%s not found", tt.name)
			continue
		}
		if e.Kind != tt.kind {
			t.Errorf("%s: expected kind %s, got %s", tt.name, tt.kind, e.Kind)
		}
	}

	button := byName(entities, "Button")
	want := []string{"label", "onClick", "size"}
	if len(button.Props) != len(want) {
		t.Fatalf("Expected props %v, got %v", want, button.Props)
	}
	for i := range want {
		if button.Props[i] != want[i] {
			t.Errorf("prop %d: expected %s, got %s", i, want[i], button.Props[i])
		}
	}

	card := byName(entities, "Card")
	if card.SourceText == "" || card.StartLine != 7 {
		t.Errorf("Expected Card source from line 7, got line %d", card.StartLine)
	}

	cart := byName(entities, "Cart")
	if len(cart.Methods) != 2 || cart.Methods[0].Name != "total" {
		t.Errorf("Expected Cart methods total, render; got %+v", cart.Methods)
	}
}

func TestExtractJava(t *testing.T) {
	javaCode := `public class Greeter {
    public Greeter() {}

    public String greet(String name) {
        return "Hello " + name;
    }
}
`
	entities := extract(t, javaCode, "java", "Greeter.java")
	if len(entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(entities))
	}
	if len(entities[0].Methods) != 2 {
		t.Fatalf("Expected constructor and greet, got %+v", entities[0].Methods)
	}
	if entities[0].Methods[1].ReturnType != "String" {
		t.Errorf("Expected return type String, got %q", entities[0].Methods[1].ReturnType)
	}
}

func TestExtractKotlin(t *testing.T) {
	ktCode := `class Greeter {
    fun greet(name: String): String {
        return "Hello $name"
    }
}

fun main() {
    println(Greeter().greet("x"))
}
`
	entities := extract(t, ktCode, "kotlin", "Main.kt")
	greeter := byName(entities, "Greeter")
	if greeter == nil || len(greeter.Methods) != 1 || greeter.Methods[0].Name != "greet" {
		t.Fatalf("Expected Greeter.greet, got %+v", entities)
	}
	if main := byName(entities, "main"); main == nil || main.Kind != "function" {
		t.Errorf("Expected top-level function main, got %+v", main)
	}
}

func TestExtractUnsupportedLanguage(t *testing.T) {
	extractor := NewExtractor()
	defer extractor.Close()

	_, err := extractor.Extract(context.Background(), []byte("x"), "cobol", "x.cbl")
	if err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestExtractedForestIngests(t *testing.T) {
	raw := extract(t, "function Card({title}){ return <div>{title}</div> }\n", "javascript", "card.jsx")
	forest, warnings := models.Ingest(raw)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(forest) != 1 || forest[0].Kind != models.KindComponent {
		t.Fatalf("Expected one component, got %+v", forest)
	}
}
