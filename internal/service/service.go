// Package service holds the memorial's business rules.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes JSON, maps errors to status codes
//	Service (rules)    → validates input, checks who may do what, orchestrates
//	Repository (data)  → reads and writes rows
//
// Services accept and return domain types only. They never see an
// *http.Request, so every rule here is testable with plain function calls
// against the in-memory store.
//
// THE ACTOR CONVENTION:
// Operations that depend on who is calling take an actor *model.Account.
// A nil actor means an anonymous visitor. The account is the one the auth
// middleware loaded for this request, so role checks always use the
// current role rather than whatever was true at login.
package service

import (
	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

// Observer receives domain events worth counting. The metrics package
// implements it with Prometheus counters.
type Observer interface {
	LoginAttempt(success bool)
	AccountRegistered()
	TributeCreated()
	TributeDeleted()
	CandleToggled(lit bool)
	FileUploaded(category string)
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(bool)   {}
func (nopObserver) AccountRegistered()  {}
func (nopObserver) TributeCreated()     {}
func (nopObserver) TributeDeleted()     {}
func (nopObserver) CandleToggled(bool)  {}
func (nopObserver) FileUploaded(string) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

// requireAccount fails with Unauthorized for anonymous callers.
func requireAccount(actor *model.Account) error {
	if actor == nil {
		return apperror.Unauthorized("sign in to continue")
	}
	return nil
}

// requireAdmin fails with Unauthorized for anonymous callers and
// Forbidden for signed-in non-admins.
func requireAdmin(actor *model.Account) error {
	if err := requireAccount(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return apperror.Forbidden("administrator access required")
	}
	return nil
}

func listOptions(limit, offset int) repository.ListOptions {
	return repository.ListOptions{Limit: limit, Offset: offset}.Normalize()
}
