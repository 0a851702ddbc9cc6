// Package models contains GORM persistence models that map to database tables.
// They stay separate from domain entities so the domain layer carries no ORM tags.
//
// - base.go: common id, timestamp and version columns
// - receiving.go: orders, order lines, receptions, reception lines and sequence counters
package models
