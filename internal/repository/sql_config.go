package repository

import "time"

// SQLDatabaseConfig documents the connection contract a relational-store
// implementation of JobRepository/RunRepository would satisfy in
// production. The persistence engine itself is an external collaborator
// (see SPEC_FULL.md §1, §9) and is not wired to a real driver here; this
// type exists so the short-lived-token authentication flow has a concrete,
// reviewable shape rather than being purely prose.
type SQLDatabaseConfig struct {
	Host   string
	Port   int
	DBName string
	DBUser string

	// StaticPassword is used when UseIAMAuth is false.
	StaticPassword string

	// UseIAMAuth switches to a short-lived-token flow: a fresh
	// authentication token is minted for every new physical connection via
	// rdsutils.BuildAuthToken, and ConnMaxLifetime must be set strictly
	// below the token's lifetime so a connection is never reused past
	// its token's expiry.
	UseIAMAuth      bool
	Region          string
	ConnMaxLifetime time.Duration
}

// NewStaticPasswordConfig builds a config for password-based auth against a
// pre-existing connection URL.
func NewStaticPasswordConfig(host string, port int, dbName, dbUser, password string) SQLDatabaseConfig {
	return SQLDatabaseConfig{Host: host, Port: port, DBName: dbName, DBUser: dbUser, StaticPassword: password}
}

// NewIAMAuthConfig builds a config for IAM short-lived-token auth. The
// connector this config feeds must call PingContext before lending any
// connection, since a token can expire between mint and first use under
// load.
func NewIAMAuthConfig(host string, port int, dbName, dbUser, region string) SQLDatabaseConfig {
	const tokenLifetime = 15 * time.Minute
	return SQLDatabaseConfig{
		Host: host, Port: port, DBName: dbName, DBUser: dbUser,
		UseIAMAuth: true, Region: region,
		ConnMaxLifetime: tokenLifetime - time.Minute,
	}
}
