package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/wbrown/janus-joqular/joqular"
	"github.com/wbrown/janus-joqular/joqular/storage"
)

var (
	firstNames = []string{"joe", "bill", "sue", "ann", "raj", "mei", "ola", "ted"}
	cities     = []string{"Seattle", "Austin", "Boston", "Denver", "Portland"}
)

func main() {
	dbPath := flag.String("db", "testdata.db", "database path")
	backend := flag.String("backend", "badger", "storage backend: badger, bolt or sqlite")
	numPeople := flag.Int("people", 1000, "number of Person instances")
	numAddresses := flag.Int("addresses", 50, "number of Address instances")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	backendType, err := storage.ParseBackendType(*backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *numAddresses < 1 {
		fmt.Fprintf(os.Stderr, "need at least one address\n")
		os.Exit(1)
	}

	fmt.Printf("Building test database: %s (%s)\n", *dbPath, backendType)
	fmt.Printf("  People: %d\n", *numPeople)
	fmt.Printf("  Addresses: %d\n", *numAddresses)
	fmt.Println()

	opts := storage.DefaultOptions(*dbPath)
	opts.Backend = backendType
	db, err := storage.Open(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	start := time.Now()
	if err := build(db, rand.New(rand.NewSource(*seed)), *numPeople, *numAddresses); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build database: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d instances in %v\n", *numPeople+*numAddresses, time.Since(start).Round(time.Millisecond))

	keys, err := db.Store().Keys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backend keys: %d\n", len(keys))

	fmt.Println("\nDone. Try:")
	fmt.Printf("   joqular --db %s --backend %s select --from P=Person --from A=Address \\\n", *dbPath, backendType)
	fmt.Println(`     --where '{"P": {"home": {"A": {"#": "$eq"}}}, "A": {"city": "Seattle"}}' --pattern '{"$ids": true}'`)
}

func build(db *storage.Database, rng *rand.Rand, numPeople, numAddresses int) error {
	for _, schema := range []joqular.Schema{joqular.NewSchema("Person"), joqular.NewSchema("Address")} {
		if err := db.Define(schema); err != nil {
			return err
		}
	}

	addresses := make([]interface{}, numAddresses)
	for i := range addresses {
		addresses[i] = map[string]interface{}{
			"city": cities[rng.Intn(len(cities))],
			"zip":  fmt.Sprintf("%05d", rng.Intn(100000)),
		}
	}
	addressIDs, err := db.Insert().Into(storage.Entity("Address")).
		Values(map[string]interface{}{"Address": addresses}).
		Exec()
	if err != nil {
		return err
	}

	people := make([]interface{}, numPeople)
	for i := range people {
		people[i] = map[string]interface{}{
			"name": firstNames[rng.Intn(len(firstNames))],
			"age":  18 + rng.Intn(70),
			"home": addressIDs[rng.Intn(len(addressIDs))],
		}
	}
	_, err = db.Insert().Into(storage.Entity("Person")).
		Values(map[string]interface{}{"Person": people}).
		Exec()
	return err
}
