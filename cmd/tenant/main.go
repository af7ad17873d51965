// Package main provides the tenant management CLI.
//
//	tenant create --slug sharma-dairy --name "Sharma Dairy" --prefix SHD
//	tenant list
//	tenant migrate --all
//	tenant suspend <tenant-id>
//	tenant token --tenant <tenant-id> --user alice --role accountant
//	tenant hash-gateway-key <key>
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"dairyflow/internal/config"
	appctx "dairyflow/internal/core/context"
	"dairyflow/internal/core/tenant"
	"dairyflow/internal/domain/auth"
	"dairyflow/internal/infrastructure/storage/postgres"
)

const (
	tenantMigrations = "db/migrations"
	metaMigrations   = "db/meta"
)

func main() {
	app := &cli.App{
		Name:  "tenant",
		Usage: "manage dairyflow tenants",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to config file"},
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create the tenant database, migrate it and register the tenant",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "slug", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "prefix", Usage: "bill number prefix", Value: "MLK"},
					&cli.StringFlag{Name: "host", Value: "localhost"},
					&cli.IntFlag{Name: "port", Value: 5432},
					&cli.StringFlag{Name: "admin-url", EnvVars: []string{"POSTGRES_ADMIN_URL"}, Usage: "connection used for CREATE DATABASE"},
				},
				Action: createTenant,
			},
			{
				Name:   "list",
				Usage:  "list all tenants",
				Action: listTenants,
			},
			{
				Name:  "migrate",
				Usage: "run migrations for tenant databases or the meta database",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "tenant id"},
					&cli.BoolFlag{Name: "all", Usage: "every active tenant"},
					&cli.BoolFlag{Name: "meta", Usage: "the meta database"},
				},
				Action: migrate,
			},
			{
				Name:      "suspend",
				Usage:     "suspend a tenant",
				ArgsUsage: "<tenant-id>",
				Action:    setStatus(tenant.StatusSuspended),
			},
			{
				Name:      "activate",
				Usage:     "activate a suspended tenant",
				ArgsUsage: "<tenant-id>",
				Action:    setStatus(tenant.StatusActive),
			},
			{
				Name:  "token",
				Usage: "issue an operator access token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Required: true},
					&cli.StringFlag{Name: "user", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.StringSliceFlag{Name: "role", Usage: "admin, accountant or operator"},
				},
				Action: issueToken,
			},
			{
				Name:      "hash-gateway-key",
				Usage:     "print the bcrypt hash for auth.gateway_key_hash",
				ArgsUsage: "<key>",
				Action:    hashGatewayKey,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Configuration, error) {
	return config.Load(c.String("config"))
}

func metaRegistry(c *cli.Context, cfg *config.Configuration) (*tenant.PostgresRegistry, func(), error) {
	if cfg.Meta.URL == "" {
		return nil, nil, fmt.Errorf("meta.url is not configured")
	}
	pool, err := postgres.NewPool(c.Context, postgres.DefaultPoolConfig(cfg.Meta.URL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect meta database: %w", err)
	}
	return tenant.NewPostgresRegistry(pool), pool.Close, nil
}

func createTenant(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	in := tenant.CreateInput{
		Slug:        c.String("slug"),
		DisplayName: c.String("name"),
		BillPrefix:  strings.ToUpper(c.String("prefix")),
		DBHost:      c.String("host"),
		DBPort:      c.Int("port"),
	}
	if err := in.Validate(); err != nil {
		return err
	}

	registry, closeMeta, err := metaRegistry(c, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	fmt.Printf("Creating tenant '%s'...\n", in.Slug)

	// 1. Create database
	if adminURL := c.String("admin-url"); adminURL != "" {
		if err := createDatabase(c.Context, adminURL, in.DBName()); err != nil {
			fmt.Printf("  Warning: %v\n", err)
			fmt.Println("  You may need to create the database manually.")
		}
	}

	t := &tenant.Tenant{
		Slug:        in.Slug,
		DisplayName: in.DisplayName,
		DBName:      in.DBName(),
		DBHost:      in.DBHost,
		DBPort:      in.DBPort,
		Status:      tenant.StatusActive,
		BillPrefix:  in.BillPrefix,
	}

	// 2. Run migrations
	fmt.Println("  Running migrations...")
	if err := goose(tenantMigrations, t.DSN(cfg.Tenants.DBUser, cfg.Tenants.DBPassword, cfg.Tenants.SSLMode)); err != nil {
		fmt.Printf("  Warning: migrations failed: %v\n", err)
		fmt.Println("  You may need to run migrations manually.")
	}

	// 3. Register in meta database
	if err := registry.Create(c.Context, t); err != nil {
		return fmt.Errorf("register tenant: %w", err)
	}

	fmt.Printf("\n✓ Tenant '%s' created\n", in.Slug)
	fmt.Printf("  Tenant ID:   %s\n", t.ID)
	fmt.Printf("  Database:    %s\n", t.DBName)
	fmt.Printf("  Bill prefix: %s\n", t.BillPrefix)
	return nil
}

func createDatabase(ctx context.Context, adminURL, dbName string) error {
	pool, err := pgxpool.New(ctx, adminURL)
	if err != nil {
		return fmt.Errorf("connect as admin: %w", err)
	}
	defer pool.Close()

	fmt.Printf("  Creating database %s...\n", dbName)
	if _, err := pool.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		if postgres.PgCode(err) == "42P04" {
			fmt.Println("  Database already exists")
			return nil
		}
		return fmt.Errorf("create database: %w", err)
	}
	return nil
}

func listTenants(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	registry, closeMeta, err := metaRegistry(c, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	tenants, err := registry.ListAll(c.Context)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return nil
	}

	fmt.Printf("%-36s %-20s %-30s %-20s %-8s %-10s\n", "TENANT_ID", "SLUG", "NAME", "DATABASE", "PREFIX", "STATUS")
	fmt.Println(strings.Repeat("-", 129))
	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-20s %-8s %-10s\n",
			truncate(t.ID, 36),
			truncate(t.Slug, 20),
			truncate(t.DisplayName, 30),
			truncate(t.DBName, 20),
			t.BillPrefix,
			t.Status,
		)
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if c.Bool("meta") {
		fmt.Println("Migrating meta database...")
		return goose(metaMigrations, cfg.Meta.URL)
	}

	targetID := c.String("id")
	if !c.Bool("all") && targetID == "" {
		return fmt.Errorf("specify --id <tenant-id>, --all or --meta")
	}

	registry, closeMeta, err := metaRegistry(c, cfg)
	if err != nil {
		return err
	}
	defer closeMeta()

	var tenants []*tenant.Tenant
	if targetID != "" {
		t, err := registry.GetByID(c.Context, targetID)
		if err != nil {
			return fmt.Errorf("tenant '%s': %w", targetID, err)
		}
		tenants = []*tenant.Tenant{t}
	} else if tenants, err = registry.ListActive(c.Context); err != nil {
		return err
	}

	failed := 0
	for _, t := range tenants {
		fmt.Printf("Migrating %s (%s)...\n", t.Slug, t.DBName)
		if err := goose(tenantMigrations, t.DSN(cfg.Tenants.DBUser, cfg.Tenants.DBPassword, cfg.Tenants.SSLMode)); err != nil {
			fmt.Printf("  ✗ Failed: %v\n", err)
			failed++
			continue
		}
		fmt.Println("  ✓ Done")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tenants failed to migrate", failed, len(tenants))
	}
	return nil
}

func goose(dir, dsn string) error {
	cmd := exec.Command("goose", "-dir", dir, "postgres", dsn, "up")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func setStatus(status tenant.Status) cli.ActionFunc {
	return func(c *cli.Context) error {
		tenantID := c.Args().First()
		if tenantID == "" {
			return fmt.Errorf("usage: tenant %s <tenant-id>", c.Command.Name)
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		registry, closeMeta, err := metaRegistry(c, cfg)
		if err != nil {
			return err
		}
		defer closeMeta()

		if err := registry.UpdateStatus(c.Context, tenantID, status); err != nil {
			return err
		}
		fmt.Printf("✓ Tenant '%s' is now %s\n", tenantID, status)
		return nil
	}
}

func issueToken(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtConfig.AccessTokenTTL = cfg.Auth.TokenTTL
	svc := auth.NewJWTService(jwtConfig)

	roles := c.StringSlice("role")
	token, expiresAt, err := svc.GenerateAccessToken(appctx.UserContext{
		UserID:   c.String("user"),
		TenantID: c.String("tenant"),
		Email:    c.String("email"),
		Roles:    roles,
		IsAdmin:  slices.Contains(roles, auth.RoleAdmin),
	})
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func hashGatewayKey(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("usage: tenant hash-gateway-key <key>")
	}
	hash, err := auth.HashGatewayKey(key)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
