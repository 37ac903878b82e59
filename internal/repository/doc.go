// Package repository provides the per-entity repositories of the
// exam-authoring backend, built on the generic persistence engine.
//
// # Paging Conventions
//
// The question listing treats page as zero-based while the exam listing
// treats page as one-based. The two call sites historically disagreed; the
// convention is configured explicitly per repository instead of silently
// unified.
//
// # Error Handling
//
// All repositories surface engine errors tagged with entity and operation
// context. Callers test error kinds with the predicates in internal/errors
// (IsNotFound, IsConflict, ...) instead of matching on driver errors.
package repository
