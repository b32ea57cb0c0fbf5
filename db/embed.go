// Package db embeds the PostgreSQL schema and the default seed document.
package db

import _ "embed"

// Schema holds the DDL for the pricing tables: skus, promotion rules and
// their actions, coupon configs, coupons, coupon usages and gift
// certificates.
//
//go:embed migrations/001_schema.sql
var Schema string

// Seed is the default seed-db document, used when no seed file is given.
//
//go:embed seed/seed.yaml
var Seed []byte
