// Package repository declares the persistence contracts of the service.
// Implementations live under internal/store.
package repository
