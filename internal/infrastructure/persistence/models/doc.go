// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free from ORM
// concerns.
//
// Each model provides ToDomain/FromDomain mappers and a TableName. Structured fields
// (the auth payload, item and audit metadata) are stored as JSON text in jsonb columns.
package models
