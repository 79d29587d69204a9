package models

// Record is a tenant-scoped business row (contact, product, order, campaign,
// ticket) keyed by column name.
type Record map[string]any
