package benchmarks

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/randalmurphal/fleetdeck/pkg/fleetdeck/record"
)

func createFleet(n int) []record.Record {
	boats := make([]record.Record, n)
	for i := range boats {
		typ := "sail"
		if i%2 == 1 {
			typ = "motor"
		}
		boats[i] = record.Record{
			ID:          fmt.Sprintf("boat-%04d", i),
			Name:        fmt.Sprintf("Boat %d", i),
			BoatTypeID:  typ,
			Length:      float64(20 + i%30),
			Price:       float64(10000 + i*100),
			Description: "benchmark fleet",
		}
	}
	return boats
}

func createEdits(n int) record.EditSet {
	set := record.NewEditSet()
	for i := 0; i < n; i++ {
		set = set.Apply(record.Edit{
			RecordID: fmt.Sprintf("boat-%04d", i),
			Field:    record.FieldPrice,
			Value:    float64(5000 + i),
		})
	}
	return set
}

// BenchmarkEditSet_Apply measures staging edits into a draft.
func BenchmarkEditSet_Apply(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = createEdits(50)
	}
}

// BenchmarkMemoryService_ListRecords measures a filtered listing.
func BenchmarkMemoryService_ListRecords(b *testing.B) {
	svc := record.NewMemoryService(createFleet(500)...)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = svc.ListRecords(ctx, record.Filter{BoatTypeID: "sail"})
	}
}

// BenchmarkMemoryService_ApplyEdits measures an atomic batch save in memory.
func BenchmarkMemoryService_ApplyEdits(b *testing.B) {
	svc := record.NewMemoryService(createFleet(500)...)
	ctx := context.Background()
	set := createEdits(50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = svc.ApplyEdits(ctx, set)
	}
}

// BenchmarkSQLiteService_ListRecords measures a filtered listing from SQLite.
func BenchmarkSQLiteService_ListRecords(b *testing.B) {
	svc := openSQLite(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = svc.ListRecords(ctx, record.Filter{BoatTypeID: "sail"})
	}
}

// BenchmarkSQLiteService_ApplyEdits measures an atomic batch save in SQLite.
func BenchmarkSQLiteService_ApplyEdits(b *testing.B) {
	svc := openSQLite(b)
	ctx := context.Background()
	set := createEdits(50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = svc.ApplyEdits(ctx, set)
	}
}

func openSQLite(b *testing.B) *record.SQLiteService {
	b.Helper()
	f, err := os.CreateTemp("", "fleetdeck-bench-*.db")
	if err != nil {
		b.Fatal(err)
	}
	path := f.Name()
	f.Close()
	b.Cleanup(func() { os.Remove(path) })

	svc, err := record.NewSQLiteService(path)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { svc.Close() })

	if err := svc.Put(context.Background(), createFleet(500)...); err != nil {
		b.Fatal(err)
	}
	return svc
}
