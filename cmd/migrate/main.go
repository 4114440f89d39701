package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gocausal/adapters/postgres"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/migration"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// graphFile is one graph saved by the file store
type graphFile struct {
	SessionID string        `json:"session_id"`
	Nodes     []causal.Node `json:"nodes"`
	Edges     []causal.Edge `json:"edges"`
}

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <database_url> <graph_dir>")
	}

	databaseURL := os.Args[1]
	graphDir := os.Args[2]

	log.Printf("Starting migration from %s to database", graphDir)

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	repo := postgres.NewGraphRepository(db)

	files, err := findGraphFiles(graphDir)
	if err != nil {
		log.Fatalf("Failed to find graph files: %v", err)
	}
	log.Printf("Found %d graph files to migrate", len(files))

	migrated := 0
	skipped := 0

	for _, file := range files {
		doc, err := loadGraphFile(file)
		if err != nil {
			log.Printf("Failed to load graph from %s: %v", file, err)
			skipped++
			continue
		}

		sessionID := sessionIDFor(file, doc)
		if err := repo.Save(ctx, sessionID, doc.Nodes, doc.Edges); err != nil {
			log.Printf("Failed to save graph %s: %v", sessionID, err)
			skipped++
			continue
		}

		migrated++
		log.Printf("Migrated graph %s from %s", sessionID, filepath.Base(file))
	}

	log.Printf("Migration complete: %d migrated, %d skipped", migrated, skipped)
}

func findGraphFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}

		return nil
	})

	return files, err
}

// sessionIDFor uses the recorded session id, falling back to a
// deterministic UUID of the file path so reruns overwrite the same row
func sessionIDFor(filePath string, doc *graphFile) core.SessionID {
	if id, err := core.ParseSessionID(doc.SessionID); err == nil {
		return id
	}
	return core.SessionID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(filePath)).String())
}

func loadGraphFile(filePath string) (*graphFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var doc graphFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}
