// Package config holds the environment-driven configuration shared by the
// verification services. Structs carry cleanenv tags and are read once at
// startup.
package config

import "fmt"

// DbConfig holds PostgreSQL connection settings.
type DbConfig struct {
	Host     string `env:"VERIFID_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"VERIFID_PG_PORT" env-default:"5432"`
	Database string `env:"VERIFID_PG_DATABASE" env-default:"verifid_db"`
	User     string `env:"VERIFID_PG_USER" env-default:"verifid"`
	Password string `env:"VERIFID_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"VERIFID_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL builds the pgx connection string.
func (d DbConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}
