// Package models contains the GORM persistence models of the ledger and its
// workflow documents. Domain types carry no ORM tags; every model converts to
// and from its domain counterpart with ToDomain and a FromDomain constructor.
//
//   - base.go: shared columns (ids, tenant, version, references)
//   - ledger.go: stock movements, balances, batches
//   - transfer.go: transfers, shop orders, return requests, disputes
//   - sales.go: sales, refunds, credit accounts
//   - cash.go: cash-up reports, remittances
//   - policy.go: tenant and location settings, margin rules, shop costs
//   - outbox.go: transactional outbox entries
package models
