// Package schema implements the schema registry (§3.1): the set of
// declared record types and polymorphic protocols a container is built
// from, validated once at construction, plus the schema-version persistence
// and index-state reconciliation pass run at container init.
package schema
