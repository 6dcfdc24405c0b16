// Package models contains the GORM persistence models behind the repositories.
// Domain types carry no ORM tags; each model converts with ToDomain and FromDomain.
//
//   - base.go: shared ID, timestamp and version columns
//   - listing.go: product records, transitions, automation records, suppliers
//   - integration.go: channel connections, mappings, sync attempts, remote orders
package models
