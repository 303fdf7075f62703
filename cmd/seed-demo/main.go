// seed-demo builds a deterministic demo roster and pushes it through the
// vault's public tokenize surface. Token seeds are stable per school and
// roster index, so rerunning the seeder is a no-op: every mapping comes back
// with isNew=false.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rosterbridge/vendor-portal/pkg/common/config"
	"github.com/rosterbridge/vendor-portal/pkg/common/database"
	"github.com/rosterbridge/vendor-portal/pkg/common/logger"
	"github.com/rosterbridge/vendor-portal/pkg/token"
	"github.com/rosterbridge/vendor-portal/pkg/vault"
)

func main() {
	logger.Init()
	cfg := config.Load()

	schoolID := flag.String("school", "lincoln-high", "school identifier used in token seeds")
	students := flag.Int("students", 50, "number of demo students")
	teachers := flag.Int("teachers", 8, "number of demo teachers")
	flag.Parse()

	vaultDB, err := database.ConnectVault(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to vault postgres")
	}
	defer database.Close(vaultDB)

	repo := vault.NewRepository(vaultDB)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate vault tables")
	}

	limiter := vault.NewLimiter(repo, nil, nil, cfg.PersistTimeout)
	service := vault.NewService(repo, limiter, vault.NewAccessLogger(repo, nil), vault.NewAlertEngine(repo, nil), cfg.BulkAlertThreshold)

	rc := vault.RequestorContext{
		RequestorID:   "seed-demo",
		RequestorType: vault.RequestorSyncJob,
		RequestorIP:   "127.0.0.1",
	}

	var inputs []vault.TokenizeInput
	for i := 0; i < *students; i++ {
		stu := token.Student(*schoolID, i)
		inputs = append(inputs, vault.TokenizeInput{
			Token:          stu,
			RealIdentifier: fmt.Sprintf("sis-%s-student-%d", *schoolID, i),
			IdentifierType: vault.IdentifierSIS,
			UserRole:       vault.RoleStudent,
		})
		// One guardian per student, derived from the child's token.
		inputs = append(inputs, vault.TokenizeInput{
			Token:          token.Parent(stu, 0),
			RealIdentifier: fmt.Sprintf("sis-%s-parent-%d", *schoolID, i),
			IdentifierType: vault.IdentifierSIS,
			UserRole:       vault.RoleParent,
		})
	}
	for i := 0; i < *teachers; i++ {
		inputs = append(inputs, vault.TokenizeInput{
			Token:          token.Teacher(*schoolID, i),
			RealIdentifier: fmt.Sprintf("sis-%s-teacher-%d", *schoolID, i),
			IdentifierType: vault.IdentifierSIS,
			UserRole:       vault.RoleTeacher,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := service.BulkTokenize(ctx, inputs, rc)

	created, existing, failed := 0, 0, 0
	for _, r := range result.Results {
		switch {
		case r.Success && r.IsNew:
			created++
		case r.Success:
			existing++
		default:
			failed++
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"school":          *schoolID,
		"created":         created,
		"existing":        existing,
		"failed":          failed,
		"alert_triggered": result.AlertTriggered,
	}).Info("demo roster seeded")
}
