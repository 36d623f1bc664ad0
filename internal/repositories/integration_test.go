package repositories_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/internal/repositories/activity"
	"github.com/Ramsey-B/clover/internal/repositories/counter"
	"github.com/Ramsey-B/clover/internal/repositories/enterprise"
	"github.com/Ramsey-B/clover/internal/repositories/product"
	"github.com/Ramsey-B/clover/internal/repositories/push"
	"github.com/Ramsey-B/clover/internal/repositories/taxonomy"
	"github.com/Ramsey-B/clover/internal/repositories/user"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDBConfig is set by TestMain. Empty Host means no database could be reached.
var (
	testDBConfig database.Config
	skipReason   string
)

// TestMain points the suite at DB_HOST when it is set, and otherwise starts a
// throwaway postgres container.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		skipReason = "Skipping integration test in -short mode"
		os.Exit(m.Run())
	}

	if os.Getenv("DB_HOST") != "" {
		port, _ := strconv.Atoi(envOr("DB_PORT", "5432"))
		testDBConfig = database.Config{
			Host:     os.Getenv("DB_HOST"),
			Port:     port,
			User:     envOr("DB_USER_NAME", "postgres"),
			Password: envOr("DB_PASSWORD", "password"),
			Name:     envOr("DB_NAME", "clover_test"),
		}
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, cfg, err := startPostgres(ctx)
	if err != nil {
		skipReason = fmt.Sprintf("Skipping integration test; no DB_HOST and postgres container failed: %v", err)
		os.Exit(m.Run())
	}
	testDBConfig = cfg
	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func startPostgres(ctx context.Context) (_ testcontainers.Container, _ database.Config, err error) {
	// docker host discovery panics when no daemon is configured
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "clover_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, database.Config{}, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, database.Config{}, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, database.Config{}, err
	}

	return container, database.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "user",
		Password: "password",
		Name:     "clover_test",
	}, nil
}

// getTestDB connects to the suite database and applies db/pg.
func getTestDB(t *testing.T) database.DB {
	t.Helper()
	if testDBConfig.Host == "" {
		t.Skip(skipReason)
	}

	db, err := sqlx.Connect("postgres", testDBConfig.DSN())
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	ms := database.NewMigrationService(getTestLogger(), &database.MigrationConfig{MigrationFolderPath: "../../db/pg"})
	require.NoError(t, ms.Migrate(db.DB, testDBConfig.Name))

	return database.NewDatabaseInstance(db, getTestLogger())
}

func TestIntegration_EnterpriseAndUserCreateIsIdempotent(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	logger := getTestLogger()
	entRepo := enterprise.NewRepository(db, logger)
	userRepo := user.NewRepository(db, logger)

	entID := "E-" + uuid.NewString()
	created, err := entRepo.Create(ctx, models.Enterprise{ID: entID, Name: "Acme", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = entRepo.Create(ctx, models.Enterprise{ID: entID, Name: "Renamed", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := entRepo.Get(ctx, entID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)

	missing, err := userRepo.Get(ctx, entID, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	for range 2 {
		_, err = userRepo.Create(ctx, models.User{EnterpriseID: entID, ID: 7, CreatedAt: time.Now().UTC()})
		require.NoError(t, err)
	}
	u, err := userRepo.Get(ctx, entID, 7)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(7), u.ID)
}

func TestIntegration_ProductPartialUpdate(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	logger := getTestLogger()
	entID := "E-" + uuid.NewString()
	_, err := enterprise.NewRepository(db, logger).Create(ctx, models.Enterprise{ID: entID, Name: "Acme", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	repo := product.NewRepository(db, logger)
	_, err = repo.Create(ctx, models.Product{
		EnterpriseID: entID,
		ID:           "P1",
		Name:         "Widget",
		Price:        models.Price(1999),
		CategoryIDs:  []string{},
		TagIDs:       []string{},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, entID, "P1", models.Changes{{Column: "price", Value: models.Price(2499)}}))

	got, err := repo.Get(ctx, entID, "P1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.Price(2499), got.Price)
	assert.Equal(t, "Widget", got.Name)
}

func TestIntegration_TaxonomyConflictKeepsFirstID(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	logger := getTestLogger()
	entID := "E-" + uuid.NewString()
	_, err := enterprise.NewRepository(db, logger).Create(ctx, models.Enterprise{ID: entID, Name: "Acme", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	repo := taxonomy.NewRepository(db, logger)
	first := models.Taxon{Kind: models.TaxonomyCategory, EnterpriseID: entID, Text: "shoes", ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	inserted, err := repo.InsertForward(ctx, models.TaxonomyCategory, []models.Taxon{first})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	require.NoError(t, repo.InsertReverse(ctx, models.TaxonomyCategory, inserted))

	loser := first
	loser.ID = uuid.NewString()
	inserted, err = repo.InsertForward(ctx, models.TaxonomyCategory, []models.Taxon{loser})
	require.NoError(t, err)
	assert.Empty(t, inserted)

	found, err := repo.FindByTexts(ctx, models.TaxonomyCategory, entID, []string{"shoes", "hats"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	texts, err := repo.TextsByIDs(ctx, models.TaxonomyCategory, []string{first.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{first.ID: "shoes"}, texts)
}

func TestIntegration_ReplayWritesNothingNew(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()
	logger := getTestLogger()
	entID := "E-" + uuid.NewString()
	_, err := enterprise.NewRepository(db, logger).Create(ctx, models.Enterprise{ID: entID, Name: "Acme", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = user.NewRepository(db, logger).Create(ctx, models.User{EnterpriseID: entID, ID: 7, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	acts := activity.NewRepository(db, logger)
	eventID := uuid.NewString()
	rec := models.LifecycleRecord{Kind: models.LifecycleInit, EventID: eventID, EnterpriseID: entID, UserID: 7, CreatedAt: time.Now().UTC()}
	loc := models.LocationHistory{EventID: eventID, EnterpriseID: entID, UserID: 7, Latitude: 1.5, Longitude: 2.5, CreatedAt: time.Now().UTC()}
	for range 2 {
		require.NoError(t, acts.WriteLifecycle(ctx, rec))
		require.NoError(t, acts.AppendLocation(ctx, loc))
	}

	var inits, locations int
	require.NoError(t, db.GetContext(ctx, &inits, "SELECT count(*) FROM app_inits WHERE event_id = $1", eventID))
	require.NoError(t, db.GetContext(ctx, &locations, "SELECT count(*) FROM user_location_history WHERE event_id = $1", eventID))
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, locations)

	pushRepo := push.NewRepository(db, logger)
	tok := models.PushToken{EnterpriseID: entID, UserID: 7, PushType: 1, Token: "abc", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	require.NoError(t, pushRepo.UpsertToken(ctx, tok))
	require.NoError(t, pushRepo.UpsertToken(ctx, tok))

	counters := counter.NewRepository(db, logger)
	a, err := counters.RegisterAPIEvent(ctx, entID, "app.init")
	require.NoError(t, err)
	b, err := counters.RegisterAPIEvent(ctx, entID, "app.init")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}
