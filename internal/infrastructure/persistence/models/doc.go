// Package models contains the GORM models behind the ledger tables. Domain
// types in internal/domain/ledger carry no ORM tags; repositories map between
// the two.
//
//   - base.go: BaseModel, AggregateModel and OwnedAggregateModel
//   - ledger.go: invoices, invoice items, credit notes, applications, history
//     and document sequences
//   - clinic.go: patients, products and appointments owned by other services
//     and read by the ledger
package models
