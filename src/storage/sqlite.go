package storage

import (
	"database/sql"
	"fmt"

	"trading-backbone/src/logger"
	"trading-backbone/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

// SQLiteStore keeps encrypted gateway credentials in an embedded database.
// Default backend for single-node deployments and local development.
type SQLiteStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteStore, error) {
	return &SQLiteStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS gateway_credentials (
			subject TEXT NOT NULL,
			channel TEXT NOT NULL,
			api_key TEXT NOT NULL,
			secret_key TEXT NOT NULL,
			gateway_user_id TEXT,
			PRIMARY KEY (subject, channel)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create gateway_credentials: %w", err)
	}

	d.Logger.Info("SQLiteStore initialized successfully (%s)", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Get(subject string, channel models.Channel) (*models.MCredentials, error) {
	row := d.DB.QueryRow(`
		SELECT subject, channel, api_key, secret_key, gateway_user_id
		FROM gateway_credentials
		WHERE subject = ? AND channel = ?
	`, subject, string(channel))

	creds := &models.MCredentials{}
	var ch string
	err := row.Scan(&creds.Subject, &ch, &creds.APIKey, &creds.SecretKey, &creds.GatewayUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no credentials for %s/%s", subject, channel)
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	creds.Channel = models.Channel(ch)

	return creds, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Put(creds *models.MCredentials) error {
	_, err := d.DB.Exec(`
		INSERT INTO gateway_credentials (subject, channel, api_key, secret_key, gateway_user_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (subject, channel) DO UPDATE SET
			api_key = excluded.api_key,
			secret_key = excluded.secret_key,
			gateway_user_id = excluded.gateway_user_id
	`, creds.Subject, string(creds.Channel), creds.APIKey, creds.SecretKey, creds.GatewayUserID)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Delete(subject string, channel models.Channel) error {
	_, err := d.DB.Exec(`
		DELETE FROM gateway_credentials WHERE subject = ? AND channel = ?
	`, subject, string(channel))
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
