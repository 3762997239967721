package repository

import (
	"strings"
	"testing"
)

func TestBuildOrderKeywordConditionSQLite(t *testing.T) {
	condition, argCount := buildOrderKeywordCondition(nil)
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if !strings.Contains(condition, "order_no LIKE ?") {
		t.Fatalf("condition should contain order_no LIKE, got %s", condition)
	}
	if !strings.Contains(condition, "oi.title LIKE ?") {
		t.Fatalf("condition should contain item title LIKE, got %s", condition)
	}
}

func TestBuildOrderKeywordConditionPostgres(t *testing.T) {
	condition, _ := buildOrderKeywordConditionByDialect("postgres")
	if !strings.Contains(condition, "order_no ILIKE ?") || !strings.Contains(condition, "oi.title ILIKE ?") {
		t.Fatalf("postgres condition should use ILIKE, got %s", condition)
	}
}

func TestEscapeLikePattern(t *testing.T) {
	got := escapeLikePattern(`50%_off\`)
	want := `50\%\_off\\`
	if got != want {
		t.Fatalf("escape mismatch, want %s got %s", want, got)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}
