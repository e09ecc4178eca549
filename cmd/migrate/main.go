package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"eastviewpta.org/internal/auth"
	"eastviewpta.org/internal/migrate"
	"eastviewpta.org/internal/pta"
	"eastviewpta.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	var (
		dsn            = flag.String("dsn", os.Getenv("PTA_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "", "Directory of SQL migrations (defaults to the embedded set)")
		seedsPath      = flag.String("seeds", "", "Directory of SQL seeds")
		email          = flag.String("email", "", "admin: account email")
		password       = flag.String("password", os.Getenv("PTA_ADMIN_PASSWORD"), "admin: account password")
		firstName      = flag.String("first-name", "Site", "admin: first name")
		lastName       = flag.String("last-name", "Admin", "admin: last name")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or PTA_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|admin]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	mgr := migrate.NewManager(db, source(*migrationsPath, pg.Migrations()), source(*seedsPath, nil))

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		err = printStatus(ctx, mgr)
	case "admin":
		err = bootstrapAdmin(ctx, pg.New(db), pta.NewUser{
			FirstName: *firstName,
			LastName:  *lastName,
			Email:     *email,
			Password:  *password,
		})
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

func source(dir string, embedded fs.FS) fs.FS {
	if dir == "" {
		return embedded
	}
	return os.DirFS(dir)
}

func printStatus(ctx context.Context, mgr *migrate.Manager) error {
	history, err := mgr.Status(ctx)
	if err != nil {
		return err
	}
	for _, item := range history {
		fmt.Println("applied ", item)
	}
	pending, err := mgr.Pending(ctx)
	if err != nil {
		return err
	}
	for _, item := range pending {
		fmt.Println("pending ", item)
	}
	return nil
}

// bootstrapAdmin creates an approved admin, or promotes the existing account
// with the same email.
func bootstrapAdmin(ctx context.Context, store pta.Store, in pta.NewUser) error {
	svc := pta.NewService(store, pta.WithPasswordHasher(auth.HashPassword))
	u, err := svc.RegisterUser(ctx, in)
	if errors.Is(err, pta.ErrConflict) {
		u, err = store.GetUserByEmail(ctx, pta.NormalizeEmail(in.Email))
	}
	if err != nil {
		return err
	}
	u.Role = pta.RoleAdmin
	u.Status = pta.UserApproved
	u.UpdatedAt = time.Now().UTC()
	if _, err := store.UpdateUser(ctx, u); err != nil {
		return err
	}
	fmt.Printf("admin ready: %s (%s)\n", u.Email, u.ID)
	return nil
}
