package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "memory", "Storage provider to use (available: memory, sqlite, firestore)")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "sqlite":
			if err := sq.Validate(); err != nil {
				panic(fmt.Sprintf("sqlite validation failed: %v", err))
			}
			p.Database = sq
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
