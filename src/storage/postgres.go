package storage

import (
	"database/sql"
	"fmt"

	"trading-backbone/src/logger"
	"trading-backbone/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresStore keeps encrypted gateway credentials in Postgres for
// deployments where the credential set is shared across hosts.
type PostgresStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	return &PostgresStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresStore initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) createTables() error {
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
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Get(subject string, channel models.Channel) (*models.MCredentials, error) {
	row := d.DB.QueryRow(`
		SELECT subject, channel, api_key, secret_key, gateway_user_id
		FROM gateway_credentials
		WHERE subject = $1 AND channel = $2
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

func (d *PostgresStore) Put(creds *models.MCredentials) error {
	_, err := d.DB.Exec(`
		INSERT INTO gateway_credentials (subject, channel, api_key, secret_key, gateway_user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject, channel) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			secret_key = EXCLUDED.secret_key,
			gateway_user_id = EXCLUDED.gateway_user_id
	`, creds.Subject, string(creds.Channel), creds.APIKey, creds.SecretKey, creds.GatewayUserID)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Delete(subject string, channel models.Channel) error {
	_, err := d.DB.Exec(`
		DELETE FROM gateway_credentials WHERE subject = $1 AND channel = $2
	`, subject, string(channel))
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
