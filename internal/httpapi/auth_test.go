package httpapi

import (
	"context"
	"testing"
	"time"

	"fiadopos/internal/domain"
	"fiadopos/internal/store/memory"
)

func newTestAuth(t *testing.T) *AuthManager {
	t.Helper()
	repo := memory.New()
	now := time.Now().UTC()
	users := []domain.UserAccount{
		{Username: "admin", Password: "escritorio-9", Role: "admin", Active: true, CreatedAt: now},
		{Username: "caja1", Password: "mostrador-7", Role: "cashier", Active: true, CreatedAt: now},
		{Username: "viejo", Password: "retirado-5", Role: "cashier", Active: false, CreatedAt: now},
	}
	for _, u := range users {
		if err := repo.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user %s: %v", u.Username, err)
		}
	}
	return NewAuthManager("una-clave-larga-de-treinta-y-dos!", time.Hour, "493817", repo)
}

func TestLoginAndParseToken(t *testing.T) {
	auth := newTestAuth(t)

	resp, err := auth.Login(domain.LoginRequest{Username: "  Admin ", Password: "escritorio-9"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "admin" || resp.AccessToken == "" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejections(t *testing.T) {
	auth := newTestAuth(t)

	if _, err := auth.Login(domain.LoginRequest{Username: "admin", Password: "wrong"}); err == nil {
		t.Fatalf("wrong password should be rejected")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "nadie", Password: "x"}); err == nil {
		t.Fatalf("unknown username should be rejected")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "viejo", Password: "retirado-5"}); err == nil {
		t.Fatalf("inactive account should be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := newTestAuth(t)

	for _, token := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		if _, err := auth.ParseToken(token); err == nil {
			t.Fatalf("token %q should be rejected", token)
		}
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	auth := newTestAuth(t)
	other := NewAuthManager("otra-clave-distinta-tambien-larga", time.Hour, "", nil)

	resp, err := auth.Login(domain.LoginRequest{Username: "caja1", Password: "mostrador-7"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with a different secret should be rejected")
	}
}

func TestValidateManagerPIN(t *testing.T) {
	auth := newTestAuth(t)

	if !auth.ValidateManagerPIN("493817") {
		t.Fatalf("configured pin should validate")
	}
	if !auth.ValidateManagerPIN(" 493817 ") {
		t.Fatalf("pin should be trimmed before comparison")
	}
	if auth.ValidateManagerPIN("000000") {
		t.Fatalf("wrong pin must not validate")
	}
	if auth.ValidateManagerPIN("") {
		t.Fatalf("empty pin must not validate")
	}

	unconfigured := NewAuthManager("una-clave-larga-de-treinta-y-dos!", time.Hour, "", nil)
	if unconfigured.ValidateManagerPIN("anything") {
		t.Fatalf("validation must always fail when no pin was configured")
	}
}

func TestCreateCashier(t *testing.T) {
	auth := newTestAuth(t)

	cashier, err := auth.CreateCashier(domain.CashierCreateRequest{Username: "Caja2", Password: "turno-tarde"})
	if err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	if cashier.Username != "caja2" || cashier.Role != "cashier" || !cashier.Active {
		t.Fatalf("unexpected cashier: %+v", cashier)
	}

	if _, err := auth.Login(domain.LoginRequest{Username: "caja2", Password: "turno-tarde"}); err != nil {
		t.Fatalf("new cashier should be able to log in: %v", err)
	}

	cases := []domain.CashierCreateRequest{
		{Username: "ab", Password: "turno-tarde"},
		{Username: "con espacio", Password: "turno-tarde"},
		{Username: "caja3", Password: "corta"},
		{Username: "caja2", Password: "turno-tarde"}, // duplicate
	}
	for _, req := range cases {
		if _, err := auth.CreateCashier(req); err == nil {
			t.Fatalf("request %+v should be rejected", req)
		}
	}
}

func TestListCashiersExcludesAdmins(t *testing.T) {
	auth := newTestAuth(t)

	cashiers := auth.ListCashiers()
	if len(cashiers) != 2 {
		t.Fatalf("expected the two cashier accounts, got %d", len(cashiers))
	}
	for _, c := range cashiers {
		if c.Role != "cashier" {
			t.Fatalf("non-cashier account leaked into listing: %+v", c)
		}
	}
	if cashiers[0].Username != "caja1" || cashiers[1].Username != "viejo" {
		t.Fatalf("cashiers should be sorted by username: %+v", cashiers)
	}
}
